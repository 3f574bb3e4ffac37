package mesomb

// Config holds the MeSomb application credentials. It is built once at
// startup and passed by reference into the client; nothing mutates it after
// construction.
type Config struct {
	ApplicationKey string
	AccessKey      string
	SecretKey      string
	BaseURL        string
}

const DefaultBaseURL = "https://mesomb.hachther.com"
