package config

type Stores struct {
	values
}

var _ StoreConfig = Stores{}

// GetStore selects the token store: memory, redis, badger, sql or mongo.
func (s Stores) GetStore() string {
	return s.get("store", "memory")
}

// GetSessionStore selects the session store: memory or redis.
func (s Stores) GetSessionStore() string {
	return s.get("session_store", "memory")
}

func (s Stores) GetRedisAddr() string {
	return s.get("redis_addr", "localhost:6379")
}

// GetBadgerDir is the badger data directory; empty runs badger in memory.
func (s Stores) GetBadgerDir() string {
	return s.get("badger_dir", "./data/tokens")
}

func (s Stores) GetSQLDialect() string {
	return s.get("sql_dialect", "sqlite")
}

func (s Stores) GetSQLDSN() string {
	return s.get("sql_dsn", "file:passwordless.db?_pragma=busy_timeout(5000)")
}

func (s Stores) GetMongoURI() string {
	return s.get("mongo_uri", "mongodb://localhost:27017")
}

func (s Stores) GetMongoDB() string {
	return s.get("mongo_db", "passwordless")
}
