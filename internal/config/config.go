package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	DatabaseURL         string // postgres DSN, or sqlite:<path> for local runs
	RedisURL            string
	DocumentStore       string // "sql" (default) or "firestore"
	FirestoreProjectID  string
	FirestoreCollection string
	BlobBackend         string // memory, supabase, s3, gcs
	SupabaseURL         string
	SupabaseSecretKey   string // service_role key, not the anon key
	SupabaseBucket      string
	S3                  S3Config
	GCSBucket           string
	PublicBaseURL       string // used to build URLs for blobs served by this process
	MaxUploadBytes      int
	AMQPURL             string
	SendinblueAPIKey    string
	MailFrom            string
	FrontendURL         string // linked from outgoing emails
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
}

// S3Config is the S3-compatible blob backend (AWS S3, MinIO, R2...).
type S3Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PublicBaseURL string
}

const defaultMaxUploadBytes = 5 << 20

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DOCUMENT_STORE", "sql")
	viper.SetDefault("FIRESTORE_COLLECTION", "cars")
	viper.SetDefault("BLOB_BACKEND", "memory")
	viper.SetDefault("SUPABASE_BUCKET", "images")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	viper.SetDefault("MAIL_FROM", "noreply@webcarros.com.br")

	port := viper.GetString("PORT")
	maxUpload := viper.GetInt("MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	return &Config{
		Env:                 strings.ToLower(viper.GetString("APP_ENV")),
		Port:                port,
		LogLevel:            viper.GetString("LOG_LEVEL"),
		DatabaseURL:         viper.GetString("DATABASE_URL"),
		RedisURL:            viper.GetString("REDIS_URL"),
		DocumentStore:       strings.ToLower(viper.GetString("DOCUMENT_STORE")),
		FirestoreProjectID:  viper.GetString("FIRESTORE_PROJECT_ID"),
		FirestoreCollection: viper.GetString("FIRESTORE_COLLECTION"),
		BlobBackend:         strings.ToLower(viper.GetString("BLOB_BACKEND")),
		SupabaseURL:         viper.GetString("SUPABASE_URL"),
		SupabaseSecretKey:   viper.GetString("SUPABASE_SECRET_KEY"),
		SupabaseBucket:      viper.GetString("SUPABASE_BUCKET"),
		S3: S3Config{
			Endpoint:      viper.GetString("S3_ENDPOINT"),
			Region:        viper.GetString("S3_REGION"),
			Bucket:        viper.GetString("S3_BUCKET"),
			AccessKey:     viper.GetString("S3_ACCESS_KEY"),
			SecretKey:     viper.GetString("S3_SECRET_KEY"),
			UsePathStyle:  viper.GetBool("S3_USE_PATH_STYLE"),
			PublicBaseURL: viper.GetString("S3_PUBLIC_BASE_URL"),
		},
		GCSBucket:           viper.GetString("GCS_BUCKET"),
		PublicBaseURL:       publicBaseURL(viper.GetString("PUBLIC_BASE_URL"), port),
		MaxUploadBytes:      maxUpload,
		AMQPURL:             viper.GetString("AMQP_URL"),
		SendinblueAPIKey:    viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:            viper.GetString("MAIL_FROM"),
		FrontendURL:         viper.GetString("FRONTEND_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
	}, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func publicBaseURL(s, port string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s == "" {
		return "http://localhost:" + port
	}
	return s
}
