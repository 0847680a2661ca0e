package config

// EnvPrefix namespaces every environment variable the bridge reads.
const EnvPrefix = "QPBRIDGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "QPBRIDGE_DB_DSN"
	EnvDBHost = "QPBRIDGE_DB_HOST"
	EnvDBUser = "QPBRIDGE_DB_USER"
	EnvDBName = "QPBRIDGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
