package email

import "net/smtp"

func (s *SMTP) SetSendMail(f func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	s.sendMail = f
}
