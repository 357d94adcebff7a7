package envutil

import (
	"os"
	"strings"
)

// EnvVar selects the deployment context.
const EnvVar = "TGLOGIN_ENV"

// IsProduction reports whether we are serving a production deployment,
// where cookies must only travel over TLS.
func IsProduction() bool {
	env := strings.ToLower(os.Getenv(EnvVar))
	return env == "production" || env == "prod"
}
