// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 汇总了进程运行所需的全部配置。
// 通过 CONFIG_PATH 指向的 YAML 文件加载，缺省值见 defaultConfig。
type Config struct {
	App struct {
		ServiceName string `yaml:"service_name"`
		AdminPort   int    `yaml:"admin_port"`
		PrettyLog   bool   `yaml:"pretty_log"`
	} `yaml:"app"`

	Infra struct {
		MySQL struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Database string `yaml:"database"`
		} `yaml:"mysql"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
			Topics  struct {
				BuyerEvents         string `yaml:"buyer_events"`
				BuyerPrompts        string `yaml:"buyer_prompts"`
				ModerationRequests  string `yaml:"moderation_requests"`
				ModerationDecisions string `yaml:"moderation_decisions"`
				ArtifactRequests    string `yaml:"artifact_requests"`
			} `yaml:"topics"`
		} `yaml:"kafka"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
	} `yaml:"infra"`

	Purchase struct {
		// 单张票价：discount 档需要完成社交任务，standard 档直接购买
		DiscountPrice float64 `yaml:"discount_price"`
		StandardPrice float64 `yaml:"standard_price"`
		// 相册聚合的静默窗口（毫秒）
		DebounceMillis int `yaml:"debounce_millis"`
		// 会话在 Redis 中的存活时间（分钟）
		SessionTTLMinutes int `yaml:"session_ttl_minutes"`
	} `yaml:"purchase"`
}

// DebounceWindow 返回相册聚合的静默窗口。
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Purchase.DebounceMillis) * time.Millisecond
}

// SessionTTL 返回购买会话的存活时间。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Purchase.SessionTTLMinutes) * time.Minute
}

var currentConfig atomic.Pointer[Config]

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.ServiceName = "ticket-bot"
	cfg.App.AdminPort = 8082
	cfg.Infra.MySQL.Host = getEnv("MYSQL_HOST", "localhost")
	cfg.Infra.MySQL.Port = 3306
	cfg.Infra.MySQL.User = getEnv("MYSQL_USER", "root")
	cfg.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", "")
	cfg.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", "lekker")
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Infra.Kafka.Brokers = []string{getEnv("KAFKA_BROKERS", "localhost:9092")}
	cfg.Infra.Kafka.Topics.BuyerEvents = "buyer-events-topic"
	cfg.Infra.Kafka.Topics.BuyerPrompts = "buyer-prompts-topic"
	cfg.Infra.Kafka.Topics.ModerationRequests = "moderation-requests-topic"
	cfg.Infra.Kafka.Topics.ModerationDecisions = "moderation-decisions-topic"
	cfg.Infra.Kafka.Topics.ArtifactRequests = "ticket-artifacts-topic"
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces")
	cfg.Purchase.DiscountPrice = 750
	cfg.Purchase.StandardPrice = 1100
	cfg.Purchase.DebounceMillis = 1200
	cfg.Purchase.SessionTTLMinutes = 30
	return cfg
}

// LoadConfig 读取配置文件并写入全局配置。
// path 为空时只使用缺省值，这让测试和本地冒烟不依赖任何文件。
func LoadConfig(path string) error {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.Wrapf(err, "parse config %s", path)
		}
	}
	currentConfig.Store(cfg)
	return nil
}

// GetCurrentConfig 返回当前生效的配置。必须先调用 LoadConfig。
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	cfg := defaultConfig()
	currentConfig.Store(cfg)
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
