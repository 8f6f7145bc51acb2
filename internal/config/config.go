package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		DefaultLanguage  string   `env:"LANG,default=ru"`
		EnabledHandlers  []string `env:"HANDLERS,default=moderator,responder"`
		LogLevel         int      `env:"LOG_LEVEL,default=4"`
		DotPath          string   `env:"DOT_PATH,default=~/.mimicbot"`
		MetricsAddr      string   `env:"METRICS_ADDR,default=:2112"`

		// PersonaUserID is the archive author whose voice replies are written in.
		PersonaUserID int64   `env:"PERSONA_USER_ID,required"`
		OperatorIDs   []int64 `env:"OPERATOR_IDS,required"`

		LLM        LLM
		Moderation Moderation
		Answer     Answer
	}

	LLM struct {
		APIKey  string `env:"LLM_API_KEY,required"`
		Model   string `env:"LLM_API_MODEL,default=gpt-4o-mini"`
		BaseURL string `env:"LLM_API_URL,default=https://api.openai.com/v1"`
		Type    string `env:"LLM_API_TYPE,default=openai"`

		// TopicExtraction switches keyword extraction from the local tokenizer
		// to a one-word topic request against the same model.
		TopicExtraction bool `env:"LLM_TOPIC_EXTRACTION,default=false"`
	}

	Moderation struct {
		DefaultMuteDuration time.Duration `env:"MUTE_DURATION,default=10m"`
		DefaultBanDuration  time.Duration `env:"BAN_DURATION,default=10m"`
		SweepInterval       time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	}

	Answer struct {
		SearchLimit    int `env:"SEARCH_LIMIT,default=50"`
		PromptBudget   int `env:"PROMPT_BUDGET,default=1000"`
		MaxAnswerWords int `env:"MAX_ANSWER_WORDS,default=20"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("MB_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
