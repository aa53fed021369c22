package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	RequestTimeoutSec    int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	UserAgent            string `json:"user_agent" yaml:"user_agent"`
	MinRequestIntervalMs int    `json:"min_request_interval_ms" yaml:"min_request_interval_ms"`
}

// API holds the OptimalBlue quick-quote widget identifiers.
type API struct {
	BaseURL  string `json:"base_url" yaml:"base_url"`
	ClientID string `json:"client_id" yaml:"client_id"`
	UserID   string `json:"user_id" yaml:"user_id"`
	FormID   string `json:"form_id" yaml:"form_id"`
}

// Loan describes the scenario the API quotes. Select fields are codes sent
// as strings; currency fields are whole dollars.
type Loan struct {
	Occupancy      string `json:"occupancy,omitempty" yaml:"occupancy,omitempty"`
	PropertyType   string `json:"property_type,omitempty" yaml:"property_type,omitempty"`
	LoanPurpose    string `json:"loan_purpose,omitempty" yaml:"loan_purpose,omitempty"`
	LoanAmount     int    `json:"loan_amount,omitempty" yaml:"loan_amount,omitempty"`
	EstimatedValue int    `json:"estimated_value,omitempty" yaml:"estimated_value,omitempty"`
	State          string `json:"state,omitempty" yaml:"state,omitempty"`
	Zipcode        string `json:"zipcode,omitempty" yaml:"zipcode,omitempty"`
	CreditScore    string `json:"credit_score,omitempty" yaml:"credit_score,omitempty"`
}

// Merge returns l with every non-zero field of o applied on top.
func (l Loan) Merge(o *Loan) Loan {
	if o == nil {
		return l
	}
	if o.Occupancy != "" {
		l.Occupancy = o.Occupancy
	}
	if o.PropertyType != "" {
		l.PropertyType = o.PropertyType
	}
	if o.LoanPurpose != "" {
		l.LoanPurpose = o.LoanPurpose
	}
	if o.LoanAmount > 0 {
		l.LoanAmount = o.LoanAmount
	}
	if o.EstimatedValue > 0 {
		l.EstimatedValue = o.EstimatedValue
	}
	if o.State != "" {
		l.State = o.State
	}
	if o.Zipcode != "" {
		l.Zipcode = o.Zipcode
	}
	if o.CreditScore != "" {
		l.CreditScore = o.CreditScore
	}
	return l
}

// Product is one tracked loan offering.
type Product struct {
	ID string `json:"id" yaml:"id"`
	// Name is shown in logs and alert emails.
	Name string `json:"name" yaml:"name"`
	// Match is compared case-insensitively as a substring of the product
	// type names returned by the API. Defaults to Name.
	Match string `json:"match" yaml:"match"`
	Loan  *Loan  `json:"loan,omitempty" yaml:"loan,omitempty"`
}

type Mail struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	// StartTLS upgrades a plain connection instead of dialing TLS directly.
	StartTLS bool `json:"starttls" yaml:"starttls"`
}

// Configured reports whether enough credentials are present to send mail.
func (m Mail) Configured() bool {
	return m.Username != "" && m.Password != "" && m.To != ""
}

type Snapshot struct {
	Path          string `json:"path" yaml:"path"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
	RedisKey      string `json:"redis_key" yaml:"redis_key"`
}

type Log struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	Output     string `json:"output" yaml:"output"`
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

type Metrics struct {
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	Job            string `json:"job" yaml:"job"`
}

type Config struct {
	HTTP     HTTP      `json:"http" yaml:"http"`
	API      API       `json:"api" yaml:"api"`
	Loan     Loan      `json:"loan" yaml:"loan"`
	Products []Product `json:"products" yaml:"products"`
	Mail     Mail      `json:"mail" yaml:"mail"`
	Snapshot Snapshot  `json:"snapshot" yaml:"snapshot"`
	Log      Log       `json:"log" yaml:"log"`
	Metrics  Metrics   `json:"metrics" yaml:"metrics"`
	// Schedule is a cron spec. Empty means run once and exit.
	Schedule string `json:"schedule" yaml:"schedule"`
}

func Default() Config {
	return Config{
		HTTP: HTTP{RequestTimeoutSec: 30, UserAgent: "ratewatch/1.0", MinRequestIntervalMs: 1000},
		API: API{
			BaseURL:  "https://quickquote-consumer.optimalblue.com",
			ClientID: "363137353031",
			UserID:   "38363530393031",
			FormID:   "36323431",
		},
		Loan: Loan{
			Occupancy:      "2",   // primary residence
			PropertyType:   "115", // single family
			LoanPurpose:    "112", // refinance
			LoanAmount:     2249000,
			EstimatedValue: 2900000,
			State:          "59", // California
			Zipcode:        "94404",
			CreditScore:    "780",
		},
		Products: []Product{
			{ID: "30yr_fixed", Name: "30 Yr Fixed", Match: "30 Yr Fixed"},
			{ID: "7_1_arm", Name: "7 Year ARM", Match: "7 Year ARM"},
		},
		Mail: Mail{Host: "smtp.gmail.com", Port: 465},
		Snapshot: Snapshot{
			Path:     filepath.Join("data", "last_rates.json"),
			RedisKey: "ratewatch:snapshot",
		},
		Log:     Log{Level: "info", Format: "text", Output: "stdout", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Metrics: Metrics{Job: "ratewatch"},
	}
}

// Load reads a JSON or YAML config from path. If path is empty, config.json,
// config.yaml and config.yml are tried in turn; when none exists defaults are
// used. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, cand := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(cand); err == nil {
				path = cand
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			// json reuses slice elements in place, so defaults must not bleed
			// into configured products.
			products := cfg.Products
			cfg.Products = nil
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
			if len(cfg.Products) == 0 {
				cfg.Products = products
			}
		}
	}
	applyEnv(&cfg)
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func normalize(cfg *Config) {
	for i := range cfg.Products {
		p := &cfg.Products[i]
		p.ID = strings.TrimSpace(p.ID)
		if p.Name == "" {
			p.Name = p.ID
		}
		if p.Match == "" {
			p.Match = p.Name
		}
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.Username
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
}

// Validate checks the fields a run cannot do without.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required")
	}
	if len(c.Products) == 0 {
		return errors.New("config: at least one product is required")
	}
	seen := make(map[string]struct{}, len(c.Products))
	for _, p := range c.Products {
		if p.ID == "" {
			return errors.New("config: product id is required")
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("config: duplicate product id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	if c.Snapshot.Path == "" && c.Snapshot.RedisAddr == "" {
		return errors.New("config: snapshot.path or snapshot.redis_addr is required")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.HTTP.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("MIN_REQUEST_INTERVAL_MS"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.HTTP.MinRequestIntervalMs = x
		}
	}
	if v := os.Getenv("RATES_API_BASE"); v != "" {
		cfg.API.BaseURL = v
	}

	// Loan scenario, kept compatible with the workflow variables.
	if v := os.Getenv("LOAN_AMOUNT"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Loan.LoanAmount = x
		}
	}
	if v := os.Getenv("ESTIMATED_VALUE"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Loan.EstimatedValue = x
		}
	}
	if v := os.Getenv("STATE"); v != "" {
		cfg.Loan.State = v
	}
	if v := os.Getenv("ZIPCODE"); v != "" {
		cfg.Loan.Zipcode = v
	}
	if v := os.Getenv("CREDIT_SCORE"); v != "" {
		cfg.Loan.CreditScore = v
	}

	if v := os.Getenv("GMAIL_USER"); v != "" {
		cfg.Mail.Username = v
	}
	if v := os.Getenv("GMAIL_APP_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
	if v := os.Getenv("ALERT_EMAIL"); v != "" {
		cfg.Mail.To = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Mail.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Mail.Port = x
		}
	}

	if v := os.Getenv("SNAPSHOT_FILE"); v != "" {
		cfg.Snapshot.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Snapshot.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Snapshot.RedisPassword = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.Output = "file"
		cfg.Log.File = v
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("RATEWATCH_SCHEDULE"); v != "" {
		cfg.Schedule = v
	}
}

func atoi(s string) int {
	x := -1
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &x); err != nil {
		return -1
	}
	return x
}
