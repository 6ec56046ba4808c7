package sessions

const (
	// KeyAuthenticatedUser holds the uid of the logged in user.
	KeyAuthenticatedUser = "authenticatedUser"

	// KeyOriginalURL holds the URL a visitor was denied before logging in.
	KeyOriginalURL = "originalUrl"
)

// Bridge maps the outcome of token verification onto session state.
type Bridge struct {
	userKey   string
	originKey string
}

type BridgeOption func(*Bridge)

// WithUserKey stores the uid under key instead of KeyAuthenticatedUser.
func WithUserKey(key string) BridgeOption {
	return func(b *Bridge) {
		b.userKey = key
	}
}

// WithOriginKey stores the original URL under key instead of KeyOriginalURL.
func WithOriginKey(key string) BridgeOption {
	return func(b *Bridge) {
		b.originKey = key
	}
}

func NewBridge(options ...BridgeOption) *Bridge {
	b := &Bridge{
		userKey:   KeyAuthenticatedUser,
		originKey: KeyOriginalURL,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Establish marks s as authenticated for uid and asks for a fresh session ID.
func (b *Bridge) Establish(s *Session, uid string) {
	s.Set(b.userKey, uid)
	s.Renew()
}

// Read returns the authenticated uid, if any.
func (b *Bridge) Read(s *Session) (string, bool) {
	if s == nil {
		return "", false
	}
	uid, ok := s.Get(b.userKey)
	return uid, ok && uid != ""
}

// Clear removes the authenticated uid from s.
func (b *Bridge) Clear(s *Session) {
	s.Delete(b.userKey)
}

func (b *Bridge) StashOriginalURL(s *Session, url string) {
	s.Set(b.originKey, url)
}

// PeekOriginalURL returns the stashed URL without removing it.
func (b *Bridge) PeekOriginalURL(s *Session) string {
	url, _ := s.Get(b.originKey)
	return url
}

// PopOriginalURL returns the stashed URL and removes it from s.
func (b *Bridge) PopOriginalURL(s *Session) string {
	url, ok := s.Get(b.originKey)
	if !ok {
		return ""
	}
	s.Delete(b.originKey)
	return url
}
