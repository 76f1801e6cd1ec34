package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "SYNCAGENT"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppConfig agent option object
type AppConfig struct {
	AppID    string `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // agent instance ID
	Host     string `mapstructure:"host" json:"host" yaml:"host"`                                      // control API bind address
	Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                      // control API listen port
	Env      string `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	Platform struct {
		BaseURL      string        `mapstructure:"base_url" json:"base_url" yaml:"base_url" validate:"required,url"`   // remote platform API root
		HealthPath   string        `mapstructure:"health_path" json:"health_path" yaml:"health_path"`                  // connectivity probe path
		Timeout      time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`                              // per request timeout
		SessionToken string        `mapstructure:"session_token" json:"-" yaml:"session_token" validate:"required"`    // session JWT issued by the platform
		StudentID    string        `mapstructure:"student_id" json:"student_id" yaml:"student_id" validate:"required"` // student this agent syncs for
	} `mapstructure:"platform" json:"platform" yaml:"platform"`
	Storage struct {
		Driver string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"oneof=sqlite redis memory"` // durable state backend
		Path   string `mapstructure:"path" json:"path" yaml:"path"`                                            // sqlite file path
	} `mapstructure:"storage" json:"storage" yaml:"storage"`
	KVStore struct {
		Host     string `mapstructure:"host" json:"host" yaml:"host"`
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`
		Password string `mapstructure:"password" json:"-" yaml:"password"`
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	Sync struct {
		ProbeSettleDelay   time.Duration `mapstructure:"probe_settle_delay" json:"probe_settle_delay" yaml:"probe_settle_delay"`       // wait after reconnect before probing
		AutoSyncDelay      time.Duration `mapstructure:"auto_sync_delay" json:"auto_sync_delay" yaml:"auto_sync_delay"`                // debounce before draining the queue
		SuccessRevertDelay time.Duration `mapstructure:"success_revert_delay" json:"success_revert_delay" yaml:"success_revert_delay"` // submission success display window
		ViewCacheTTL       time.Duration `mapstructure:"view_cache_ttl" json:"view_cache_ttl" yaml:"view_cache_ttl"`                   // cached view lifetime
	} `mapstructure:"sync" json:"sync" yaml:"sync"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		IDLength int `mapstructure:"id_length" json:"id_length" yaml:"id_length"` // length of generated attempt IDs
	} `mapstructure:"security" json:"security" yaml:"security"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// InitConfig init agent config using viper
func InitConfig() (*AppConfig, error) {
	// app
	pflag.String("host", "127.0.0.1", "control API binding address")
	pflag.String("app_id", "", "agent instance identifier (required)")
	pflag.String("env", "development", "runtime environment, can be 'development' or 'production'")
	pflag.Int("port", 8733, "control API listening port")

	// platform
	pflag.String("platform.base_url", "", "remote platform API root URL (required)")
	pflag.String("platform.health_path", "/healthz", "path probed to confirm real connectivity")
	pflag.Duration("platform.timeout", 10*time.Second, "per request timeout against the platform API")
	pflag.String("platform.session_token", "", "session token issued by the platform (required)")
	pflag.String("platform.student_id", "", "student the agent syncs progress for (required)")

	// storage
	pflag.String("storage.driver", "sqlite", "durable state backend, one of sqlite, redis or memory")
	pflag.String("storage.path", "sync-agent.db", "sqlite database file path")

	// kv storage
	pflag.String("kv.host", "127.0.0.1", "kv host")
	pflag.Int("kv.port", 6379, "kv server port")
	pflag.String("kv.password", "", "kv server password")

	// sync timing
	pflag.Duration("sync.probe_settle_delay", 500*time.Millisecond, "settle delay before the post-reconnect probe")
	pflag.Duration("sync.auto_sync_delay", time.Second, "debounce before auto draining the offline queue")
	pflag.Duration("sync.success_revert_delay", 2*time.Second, "how long a submission stays in the success state")
	pflag.Duration("sync.view_cache_ttl", 5*time.Minute, "cached view lifetime")

	// logging
	pflag.String("logging.level", "info", "logging level")
	pflag.String("logging.file_path", "", "log to file")

	// security
	pflag.Int("security.id_length", 24, "set length of generated attempt IDs")

	// DevOp
	pflag.Bool("devop.apm", false, "enable apm metrics")

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config = new(AppConfig)
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("Agent config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("yaml")
		if name == "-" || name == "" {
			return ""
		}
		return name
	})
	err := validate.Struct(config)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		log.Fatalf("Failed to validate config: %s", err)
	}
	if err == nil {
		return nil
	}

	var msg []string
	for _, field := range err.(validator.ValidationErrors) {
		namespace := field.Namespace()
		fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
		switch field.Tag() {
		case "required":
			msg = append(msg, fmt.Sprintf("%s is required", fieldName))
		case "oneof":
			msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
		case "url":
			msg = append(msg, fmt.Sprintf("%s must be a valid URL", fieldName))
		}
	}
	if len(msg) > 0 {
		return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
	}
	return nil
}
