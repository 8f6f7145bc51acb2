package main

import (
	"context"
	"math/rand"
	"os"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/evocoder/mimicbot/internal/adapters"
	"github.com/evocoder/mimicbot/internal/adapters/llm/gemini"
	"github.com/evocoder/mimicbot/internal/adapters/llm/openai"
	"github.com/evocoder/mimicbot/internal/bot"
	"github.com/evocoder/mimicbot/internal/clock"
	"github.com/evocoder/mimicbot/internal/config"
	"github.com/evocoder/mimicbot/internal/db/sqlite"
	"github.com/evocoder/mimicbot/internal/event"
	"github.com/evocoder/mimicbot/internal/handlers"
	"github.com/evocoder/mimicbot/internal/infra"
	"github.com/evocoder/mimicbot/internal/keywords"
	"github.com/evocoder/mimicbot/internal/lifecycle"
	"github.com/evocoder/mimicbot/internal/moderation"
	"github.com/evocoder/mimicbot/internal/observability"
	"github.com/evocoder/mimicbot/internal/synthesis"
	"github.com/evocoder/mimicbot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetFormatter(&config.MbFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		log.WithError(err).Error("cant init observability")
	}

	infra.GoRecoverable(-1, "main", func() {
		run(ctx, cfg)
	})

	<-infra.MonitorExecutable(ctx)
	log.Errorln("executable file was modified")
	os.Exit(0)
}

func run(ctx context.Context, cfg config.Config) {
	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithError(err).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	// The store is the one dependency the bot cannot run without.
	dbClient, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), "bot.db")
	if err != nil {
		log.WithError(err).Fatalln("cant open database")
	}
	defer dbClient.Close()

	service := bot.NewService(botAPI, dbClient)
	transport := telegram.NewOperations(botAPI)

	var model adapters.LLM
	llmLogger := log.WithField("context", "llm")
	switch cfg.LLM.Type {
	case "gemini":
		model = gemini.NewGemini(cfg.LLM.APIKey, cfg.LLM.Model, llmLogger)
	default:
		model = openai.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, llmLogger)
	}

	var keywordSource handlers.KeywordSource
	if cfg.LLM.TopicExtraction {
		keywordSource = topicSource{keywords.NewTopicExtractor(model, llmLogger)}
	} else {
		keywordSource = handlers.KeywordFunc(func(_ context.Context, question string) []string {
			return keywords.Extract(question)
		})
	}

	styler := synthesis.NewStyler(rand.New(rand.NewSource(time.Now().UnixNano())))
	answerer := synthesis.NewSynthesizer(
		model,
		styler,
		cfg.Answer.PromptBudget,
		cfg.Answer.MaxAnswerWords,
		log.WithField("context", "synthesis"),
	)

	registry := moderation.NewRegistry(dbClient, clock.System(), cfg.Moderation.SweepInterval)
	deletions := event.NewDeletionQueue(transport.DeleteMessage)

	runtime := lifecycle.NewRuntime(registry, deletions)
	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start components")
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Error("cant stop components")
		}
	}()

	bot.RegisterUpdateHandler("moderator", handlers.NewModerator(registry, dbClient, transport, deletions, handlers.ModeratorConfig{
		OperatorIDs:         cfg.OperatorIDs,
		DefaultMuteDuration: cfg.Moderation.DefaultMuteDuration,
		DefaultBanDuration:  cfg.Moderation.DefaultBanDuration,
		Language:            cfg.DefaultLanguage,
	}))
	bot.RegisterUpdateHandler("responder", handlers.NewResponder(dbClient, transport, keywordSource, answerer, botAPI.Self.ID, botAPI.Self.UserName, handlers.ResponderConfig{
		PersonaUserID: cfg.PersonaUserID,
		SearchLimit:   cfg.Answer.SearchLimit,
	}))

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateProcessor := bot.NewUpdateProcessor(service)

	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case err := <-errorChan:
				return err
			case update := <-updateChan:
				if err := updateProcessor.Process(runCtx, &update); err != nil {
					log.WithError(err).Errorln("cant process update")
				}
			case <-runCtx.Done():
				return runCtx.Err()
			}
		}
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).Fatalln("bot api get updates error")
	}
}

type topicSource struct {
	extractor *keywords.TopicExtractor
}

func (s topicSource) Keywords(ctx context.Context, question string) []string {
	return s.extractor.Topic(ctx, question)
}
