package account

import (
	"fmt"
	"os"
	"strings"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Name is the name of the trading account.
type Name string

// Secret defines a security pair of a key and secret
type Secret struct {
	Key    string
	Secret string
}

// Format resolves the environment variable names for the credentials of an account.
type Format struct {
	user     Name
	exchange api.ExchangeName
}

func NewFormat(user Name, exchange api.ExchangeName) Format {
	return Format{
		user:     user,
		exchange: exchange,
	}
}

func (f Format) Key() string {
	return strings.ToUpper(fmt.Sprintf("%s_%s_KEY", f.user, f.exchange))
}

func (f Format) Secret() string {
	return strings.ToUpper(fmt.Sprintf("%s_%s_SECRET", f.user, f.exchange))
}

// Credentials loads the key and secret of the account from the environment.
// The given env files are loaded first, without overriding variables that are already set.
func Credentials(user Name, exchange api.ExchangeName, files ...string) (Secret, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Debug().Err(err).Strs("files", files).Msg("no env file")
	}
	format := NewFormat(user, exchange)
	secret := Secret{
		Key:    os.Getenv(format.Key()),
		Secret: os.Getenv(format.Secret()),
	}
	if secret.Key == "" {
		return secret, fmt.Errorf("key not found for %s", format.Key())
	}
	if secret.Secret == "" {
		return secret, fmt.Errorf("secret not found for %s", format.Secret())
	}
	return secret, nil
}
