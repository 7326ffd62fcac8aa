// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 聚合了 storefront 服务的全部配置。
// App 是业务相关配置，Infra 是基础设施连接信息。
type Config struct {
	App struct {
		ServiceName string `yaml:"service_name"`
		Port        int    `yaml:"port"`

		Checkout struct {
			PollInterval time.Duration `yaml:"poll_interval"` // 支付确认轮询间隔
		} `yaml:"checkout"`

		FeatureFlags struct {
			EnableMutationLock   bool `yaml:"enable_mutation_lock"`   // 用 ZooKeeper 锁串行化购物车写操作
			EnableCheckoutEvents bool `yaml:"enable_checkout_events"` // 向 Kafka 发布结算生命周期事件
		} `yaml:"feature_flags"`
	} `yaml:"app"`

	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`

		Redis struct {
			Addr     string        `yaml:"addr"`
			Password string        `yaml:"password"`
			DB       int           `yaml:"db"`
			TTL      time.Duration `yaml:"ttl"`
		} `yaml:"redis"`

		Kafka struct {
			Brokers       []string `yaml:"brokers"`
			CheckoutTopic string   `yaml:"checkout_topic"`
		} `yaml:"kafka"`

		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`

		Nacos struct {
			Enabled     bool   `yaml:"enabled"`
			ServerAddrs string `yaml:"server_addrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`

		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`

		Backend struct {
			// 上游商城后端。Nacos 可用时按 ServiceName 发现，否则直连 BaseURL。
			ServiceName string `yaml:"service_name"`
			BaseURL     string `yaml:"base_url"`
		} `yaml:"backend"`
	} `yaml:"infra"`
}

var (
	currentConfig Config
	configOnce    sync.Once
)

// Init 加载配置。配置文件路径取自 CONFIG_PATH，缺省为 configs/config.yaml；
// 文件不存在时退回到内置默认值，个别字段再由环境变量覆盖。
func Init() {
	configOnce.Do(func() {
		currentConfig = defaultConfig()

		path := getEnv("CONFIG_PATH", "configs/config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			// 解析失败保留默认值，不让服务因配置残缺而无法启动
			_ = yaml.Unmarshal(data, &currentConfig)
		}

		applyEnvOverrides(&currentConfig)
	})
}

// GetCurrentConfig 返回当前配置。必须在 Init 之后调用。
func GetCurrentConfig() Config {
	return currentConfig
}

func defaultConfig() Config {
	var cfg Config
	cfg.App.ServiceName = "storefront"
	cfg.App.Port = 8080
	cfg.App.Checkout.PollInterval = 3 * time.Second
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Redis.Addr = "localhost:6379"
	cfg.Infra.Redis.TTL = 30 * 24 * time.Hour
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Kafka.CheckoutTopic = "checkout-events-topic"
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"
	cfg.Infra.Backend.ServiceName = "commerce-backend"
	cfg.Infra.Backend.BaseURL = "http://localhost:8090"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Mysql.DSN = getEnv("MYSQL_DSN", cfg.Infra.Mysql.DSN)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Infra.Backend.BaseURL = getEnv("BACKEND_BASE_URL", cfg.Infra.Backend.BaseURL)
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
