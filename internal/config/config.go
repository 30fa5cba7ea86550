package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// MasterConfig controls the crawl master: its listen address, the shared
// secret workers must present, and the job buffer behavior.
type MasterConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Password         string `yaml:"password"`
	BatchSize        int    `yaml:"batchSize"`
	MaxJobRequest    int    `yaml:"maxJobRequest"`
	SweepSchedule    string `yaml:"sweepSchedule"`
	RequestTimeoutMs int    `yaml:"requestTimeoutMs"`
}

// FetchConfig mirrors the retry/timeout budget of the HTTP fetch layer.
type FetchConfig struct {
	TimeoutMs        int               `yaml:"timeoutMs"`
	RenderTimeoutMs  int               `yaml:"renderTimeoutMs"`
	Retries          int               `yaml:"retries"`
	RetryStatuses    []int             `yaml:"retryStatuses"`
	BackoffFactorMs  int               `yaml:"backoffFactorMs"`
	RedirectLimit    int               `yaml:"redirectLimit"`
	RandomSleepMinMs int               `yaml:"randomSleepMinMs"`
	RandomSleepMaxMs int               `yaml:"randomSleepMaxMs"`
	UserAgent        string            `yaml:"userAgent"`
	Headers          map[string]string `yaml:"headers"`
}

// FrontierConfig selects the reservation policy and the serialization
// primitive used by Reserve.
type FrontierConfig struct {
	// Policy is either "topk" (global highest priority first) or
	// "hostfair" (one job per host, then by priority).
	Policy              string `yaml:"policy"`
	LockRetries         int    `yaml:"lockRetries"`
	LockRetryIntervalMs int    `yaml:"lockRetryIntervalMs"`
	LockTTLMs           int    `yaml:"lockTTLMs"`
	LeaseMinutes        int    `yaml:"leaseMinutes"`
}

// WorkerConfig controls the crawl worker loop.
type WorkerConfig struct {
	MasterURL        string  `yaml:"masterURL"`
	BatchSize        int     `yaml:"batchSize"`
	RequestTimeoutMs int     `yaml:"requestTimeoutMs"`
	HostRatePerSec   float64 `yaml:"hostRatePerSec"`
	SaveRetries      int     `yaml:"saveRetries"`
}

type RobotsConfig struct {
	Respect bool `yaml:"respect"`
}

type RodConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BrowserURL string `yaml:"browserURL"`
}

// RelevanceConfig gathers the topic, language, and URL-pattern knobs that
// drive both URL priorities and document classification.
type RelevanceConfig struct {
	TopicKeyword          string   `yaml:"topicKeyword"`
	TopicVariants         []string `yaml:"topicVariants"`
	BlockedPatterns       []string `yaml:"blockedPatterns"`
	AlwaysKeep            []string `yaml:"alwaysKeep"`
	SeedBonusPatterns     []string `yaml:"seedBonusPatterns"`
	MediaExtensions       []string `yaml:"mediaExtensions"`
	LongWordThreshold     int      `yaml:"longWordThreshold"`
	EnglishThreshold      float64  `yaml:"englishThreshold"`
	EnglishMultiThreshold float64  `yaml:"englishMultiThreshold"`
	SurroundingTextLength int      `yaml:"surroundingTextLength"`
}

// ImportanceConfig parameterizes the host importance bonus added to job
// priorities by the master and the offline priority updater.
type ImportanceConfig struct {
	PageRankScale    float64 `yaml:"pageRankScale"`
	PageRankCap      float64 `yaml:"pageRankCap"`
	RatioThreshold   float64 `yaml:"ratioThreshold"`
	SuccessBonus     float64 `yaml:"successBonus"`
	SuccessPenalty   float64 `yaml:"successPenalty"`
	RelevanceBonus   float64 `yaml:"relevanceBonus"`
	RelevancePenalty float64 `yaml:"relevancePenalty"`
	MinSample        int64   `yaml:"minSample"`
	BelowSamplePen   float64 `yaml:"belowSamplePenalty"`
}

// RankingConfig controls the offline TF-IDF build and query-time fusion.
type RankingConfig struct {
	NGramMin        int                `yaml:"ngramMin"`
	NGramMax        int                `yaml:"ngramMax"`
	FieldWeights    map[string]float64 `yaml:"fieldWeights"`
	PageRankMaxIter int                `yaml:"pagerankMaxIter"`
	PageRankDamping float64            `yaml:"pagerankDamping"`
	Personalization map[string]float64 `yaml:"personalization"`
}

// ArtifactsConfig names the on-disk ranking artifacts.
type ArtifactsConfig struct {
	Dir           string `yaml:"dir"`
	InvertedIndex string `yaml:"invertedIndex"`
	Vectorizers   string `yaml:"vectorizers"`
	LinkGraph     string `yaml:"linkGraph"`
	PageRank      string `yaml:"pageRank"`
	URLClassifier string `yaml:"urlClassifier"`
}

type BootstrapConfig struct {
	Seeds []string `yaml:"seeds"`
}

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Master     MasterConfig     `yaml:"master"`
	Search     ServerConfig     `yaml:"search"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Frontier   FrontierConfig   `yaml:"frontier"`
	Worker     WorkerConfig     `yaml:"worker"`
	Robots     RobotsConfig     `yaml:"robots"`
	Rod        RodConfig        `yaml:"rod"`
	Relevance  RelevanceConfig  `yaml:"relevance"`
	Importance ImportanceConfig `yaml:"importance"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Bootstrap  BootstrapConfig  `yaml:"bootstrap"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return &cfg
}

// FetchTimeout returns the static fetch timeout with a sane floor.
func (c *Config) FetchTimeout() time.Duration {
	if c.Fetch.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Fetch.TimeoutMs) * time.Millisecond
}

// RenderTimeout returns the headless render timeout with a sane floor.
func (c *Config) RenderTimeout() time.Duration {
	if c.Fetch.RenderTimeoutMs <= 0 {
		return 45 * time.Second
	}
	return time.Duration(c.Fetch.RenderTimeoutMs) * time.Millisecond
}

// Lease returns the reservation lease after which a job stuck in
// being_crawled becomes re-reservable by the staleness sweep.
func (c *Config) Lease() time.Duration {
	if c.Frontier.LeaseMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Frontier.LeaseMinutes) * time.Minute
}
