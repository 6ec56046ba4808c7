package redisstore

var PTTL = pttl
