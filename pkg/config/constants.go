package config

const (
	// EnvPrefix is passed to envconfig; variables carry explicit RXLEDGER_ tags.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "RXLEDGER_DB_DSN"
	EnvDBHost = "RXLEDGER_DB_HOST"
	EnvDBUser = "RXLEDGER_DB_USER"
	EnvDBName = "RXLEDGER_DB_NAME"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
