package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env
// y opcionalmente archivo .env).
type Config struct {
	App       AppConfig
	DB        DBConfig
	HTTP      HTTPConfig
	JWT       JWTConfig
	Authority AuthorityConfig
	Artifacts ArtifactsConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

// AuthorityConfig configuración del cliente de autoridad tributaria.
// Las URLs vacías usan los endpoints oficiales según el ambiente del emisor.
type AuthorityConfig struct {
	SRIReceptionURL     string // override del WS de recepción SRI
	SRIAuthorizationURL string // override del WS de autorización SRI
	DIANURL             string // override del WS DIAN
	DIANTechnicalKey    string // clave técnica de la resolución (referencia provisional)
	RequestTimeout      time.Duration
	RetryBudget         int           // intentos máximos por fase antes de ERROR
	RetryBaseDelay      time.Duration // base del backoff exponencial
}

// ArtifactsConfig configuración del almacén de artefactos por documento.
type ArtifactsConfig struct {
	Dir string // raíz del árbol {tenant}/{documentID}/...
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DatabaseURL si está definido,
// si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para
// caracteres especiales en la contraseña.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de validación de tokens. Los tokens los emite la
// capa CRUD externa; este servicio solo los valida.
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde
// archivo .env). Las env vars tienen prioridad.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:  getString(v, "APP_ENV", "development"),
			Name: getString(v, "APP_NAME", "facturio"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "facturio"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		JWT: JWTConfig{
			Secret: getString(v, "JWT_SECRET", ""),
			Issuer: getString(v, "JWT_ISSUER", "facturio"),
		},
		Authority: AuthorityConfig{
			SRIReceptionURL:     getString(v, "SRI_RECEPTION_URL", ""),
			SRIAuthorizationURL: getString(v, "SRI_AUTHORIZATION_URL", ""),
			DIANURL:             getString(v, "DIAN_URL", ""),
			DIANTechnicalKey:    getString(v, "DIAN_TECHNICAL_KEY", ""),
			RequestTimeout:      time.Duration(getInt(v, "AUTHORITY_TIMEOUT_SECONDS", 60)) * time.Second,
			RetryBudget:         getInt(v, "AUTHORITY_RETRY_BUDGET", 3),
			RetryBaseDelay:      time.Duration(getInt(v, "AUTHORITY_RETRY_BASE_MS", 500)) * time.Millisecond,
		},
		Artifacts: ArtifactsConfig{
			Dir: getString(v, "ARTIFACTS_DIR", "./artifacts"),
		},
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case string:
			n, _ := strconv.Atoi(v.GetString(key))
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}
