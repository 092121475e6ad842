package config

const (
	EnvPrefix = "GOMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "GOMART_DB_DSN"
	EnvDBHost = "GOMART_DB_HOST"
	EnvDBUser = "GOMART_DB_USER"
	EnvDBName = "GOMART_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
