package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"agora.app/verdict/common/id"
	"agora.app/verdict/common/llm"
	"agora.app/verdict/common/logger"
	"agora.app/verdict/common/search"
	"agora.app/verdict/core/config"
	"agora.app/verdict/core/db"
	"agora.app/verdict/internal/model"
	"agora.app/verdict/internal/pipeline"
	"agora.app/verdict/internal/service"
	"agora.app/verdict/internal/store"
)

// Seeds three sample debates with arguments of deliberately varied quality,
// so scoring output spans the full range. Arguments are written through the
// store rather than ArgumentService.Submit: the fixture includes junk
// submissions on purpose, and verification is what should judge them.
func main() {
	verify := flag.Bool("verify", false, "run bulk verification for each topic after seeding")
	synthesize := flag.Bool("synthesize", false, "generate rebuttal matches and a debate synthesis for each topic")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeSeed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg)

	// The worker runs as node 2; keep seed IDs distinct
	if err := id.Init(1); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize id generator: %v\n", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
		os.Exit(1)
	}

	reasoningLLM, err := llm.NewClient(llm.Config{
		Provider: cfg.ReasoningLLM.Provider,
		APIKey:   cfg.ReasoningLLM.APIKey,
		BaseURL:  cfg.ReasoningLLM.BaseURL,
		Model:    cfg.ReasoningLLM.Model,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create reasoning client: %v\n", err)
		os.Exit(1)
	}

	synthesisLLM, err := llm.NewClient(llm.Config{
		Provider: cfg.SynthesisLLM.Provider,
		APIKey:   cfg.SynthesisLLM.APIKey,
		BaseURL:  cfg.SynthesisLLM.BaseURL,
		Model:    cfg.SynthesisLLM.Model,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create synthesis client: %v\n", err)
		os.Exit(1)
	}

	searcher, err := search.New(search.Config{
		APIKey:      cfg.Tavily.APIKey,
		BaseURL:     cfg.Tavily.BaseURL,
		MaxResults:  cfg.Tavily.MaxResults,
		SearchDepth: cfg.Tavily.SearchDepth,
		Timeout:     cfg.Tavily.Timeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create search client: %v\n", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Querier())
	topicSvc := service.NewTopicService(stores.Topics(), stores.Arguments(), stores.Matches())

	factChecker := pipeline.NewFactChecker(reasoningLLM, searcher)
	orchestrator := pipeline.NewOrchestrator(factChecker, stores.Topics(), stores.Arguments(), cfg.Verification)

	synthesisSvc := service.NewSynthesisService(
		stores.Topics(),
		stores.Arguments(),
		service.NewTxRunner(database),
		pipeline.NewMatcher(reasoningLLM),
		pipeline.NewSynthesizer(synthesisLLM),
		slog.Default(),
	)

	fmt.Println("Seeding sample debates...")

	for _, debate := range sampleDebates() {
		topic, err := topicSvc.Create(ctx, service.CreateTopicParams{
			Question:  debate.question,
			CreatedBy: debate.createdBy,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create topic %q: %v\n", debate.question, err)
			os.Exit(1)
		}
		fmt.Printf("\ncreated topic %q (slug %s)\n", topic.Question, topic.Slug)

		for _, sample := range debate.arguments {
			arg := &model.Argument{
				ID:      id.New(),
				TopicID: topic.ID,
				Side:    sample.side,
				Title:   sample.title,
				Content: sample.content,
				Sources: sample.sources,
				Author:  "sample_user",
			}
			if err := stores.Arguments().Create(ctx, arg); err != nil {
				fmt.Fprintf(os.Stderr, "failed to create argument %q: %v\n", sample.title, err)
				os.Exit(1)
			}
			fmt.Printf("  + [%s] %s\n", sample.side, sample.title)
		}

		if *verify {
			fmt.Printf("  verifying %q...\n", topic.Slug)
			report, err := orchestrator.VerifyTopic(ctx, topic.ID, false)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  verification failed: %v\n", err)
				continue
			}
			for _, result := range report.Results {
				switch {
				case result.Status != pipeline.StatusVerified:
					fmt.Printf("  ! %s: %s\n", result.Title, result.Error)
				case result.Score == nil:
					fmt.Printf("  ? %s: no checkable claim\n", result.Title)
				default:
					fmt.Printf("  * %s: %d/5\n", result.Title, *result.Score)
				}
			}
		}

		if *synthesize {
			fmt.Printf("  synthesizing %q...\n", topic.Slug)
			result, err := synthesisSvc.Refresh(ctx, topic.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  synthesis failed: %v\n", err)
				continue
			}
			if !result.Persisted {
				fmt.Println("  synthesis skipped: needs arguments on both sides")
				continue
			}
			fmt.Printf("  matched %d rebuttal pairs, %d timeline periods\n",
				len(result.Matches), len(result.Synthesis.Timeline))
		}
	}

	fmt.Println("\nDone.")
}

type sampleArgument struct {
	side    model.Side
	title   string
	content string
	sources string
}

type sampleDebate struct {
	question  string
	createdBy string
	arguments []sampleArgument
}

func sampleDebates() []sampleDebate {
	return []sampleDebate{
		{
			question:  "Should social media platforms be required to verify user identities?",
			createdBy: "admin",
			arguments: []sampleArgument{
				{
					side:    model.SidePro,
					title:   "Reduces online harassment and fake accounts",
					content: "Identity verification would significantly reduce anonymous trolling, cyberbullying, and the spread of misinformation. Studies show that platforms with verified users have 60% fewer harassment reports. Real-name policies in countries like South Korea have proven effective at curbing online abuse.",
					sources: "https://www.pewresearch.org/internet/2021/01/13/the-state-of-online-harassment/",
				},
				{
					side:    model.SidePro,
					title:   "Prevents election interference",
					content: "Verified identities make it harder for foreign actors to create fake accounts and spread disinformation during elections. The 2016 and 2020 elections showed how unverified accounts can manipulate public discourse.",
					sources: "https://www.brookings.edu/articles/foreign-interference-in-elections/",
				},
				{
					side:    model.SidePro,
					title:   "This is a bad idea",
					content: "you guys are wrong about this. social media is fine the way it is. stop trying to control everything",
				},
				{
					side:    model.SideCon,
					title:   "Privacy concerns and data security risks",
					content: "Requiring identity verification creates massive privacy risks. Centralized databases of user identities become targets for hackers. The 2017 Equifax breach exposed 147 million people's personal data. Social media platforms have poor security track records.",
					sources: "https://www.ftc.gov/news-events/news/press-releases/2019/07/equifax-pay-575-million-part-settlement-ftc-cfpb-states-regarding-2017-data-breach",
				},
				{
					side:    model.SideCon,
					title:   "Disproportionately harms marginalized communities",
					content: "Identity verification requirements disproportionately impact LGBTQ+ individuals, activists, journalists, and people in authoritarian countries who need anonymity for safety. Real-name policies have been used to suppress dissent.",
					sources: "https://www.hrw.org/news/2021/03/15/china-social-media-platforms-should-protect-user-privacy",
				},
				{
					side:    model.SideCon,
					title:   "Too expensive to implement",
					content: "this would cost way too much money. companies cant afford it",
				},
			},
		},
		{
			question:  "Should AI-generated content be required to have disclosure labels?",
			createdBy: "admin",
			arguments: []sampleArgument{
				{
					side:    model.SidePro,
					title:   "Prevents deception and maintains trust",
					content: "AI-generated content can be indistinguishable from human-created content, leading to deception. A 2023 study found that 85% of people cannot reliably identify AI-generated text. Disclosure labels are essential for maintaining trust in digital media.",
					sources: "https://www.nature.com/articles/s41598-023-43143-7",
				},
				{
					side:    model.SidePro,
					title:   "Protects intellectual property and creative industries",
					content: "AI-generated content threatens jobs in creative industries. Without disclosure, AI content could flood markets and devalue human creativity. Labeling helps consumers make informed choices and supports human creators.",
				},
				{
					side:    model.SideCon,
					title:   "Technically difficult to enforce",
					content: "Enforcing disclosure labels is nearly impossible. AI tools are widely available and constantly evolving. Bad actors will simply ignore labeling requirements. The technology to detect AI content is unreliable, with false positive rates as high as 30%.",
					sources: "https://arxiv.org/abs/2307.01908",
				},
				{
					side:    model.SideCon,
					title:   "Stifles innovation and creative expression",
					content: "Mandatory labeling creates unnecessary barriers for legitimate uses of AI in creative work. Many artists use AI as a tool alongside traditional methods. Over-regulation could slow innovation in the creative technology sector.",
				},
				{
					side:    model.SideCon,
					title:   "ai is bad",
					content: "i dont like ai. its going to take over the world. we should ban it completely",
				},
			},
		},
		{
			question:  "Should remote work be the default for knowledge workers?",
			createdBy: "admin",
			arguments: []sampleArgument{
				{
					side:    model.SidePro,
					title:   "Improves work-life balance and employee satisfaction",
					content: "Remote work significantly improves work-life balance. A 2022 survey of 10,000 knowledge workers found that 78% reported better work-life balance when working remotely. Employees save an average of 2.5 hours per day on commuting, which can be used for family time or personal development.",
					sources: "https://www.mckinsey.com/industries/real-estate/our-insights/americans-are-embracing-flexible-work-and-they-want-more-of-it",
				},
				{
					side:    model.SidePro,
					title:   "Reduces carbon emissions and office costs",
					content: "Remote work reduces commuting, which accounts for 28% of greenhouse gas emissions in the US. Companies can also reduce office space costs by 30-50%. A study by Global Workplace Analytics estimated that remote work could reduce carbon emissions by 54 million tons annually.",
					sources: "https://www.globalworkplaceanalytics.com/telecommuting-statistics",
				},
				{
					side:    model.SidePro,
					title:   "remote work is better",
					content: "working from home is just better. i can wear pajamas and no one cares",
				},
				{
					side:    model.SideCon,
					title:   "Hurts collaboration and team culture",
					content: "Remote work reduces spontaneous collaboration and weakens team bonds. Research from Microsoft found that remote work leads to fewer 'weak ties' - the casual connections that drive innovation. In-person interactions are crucial for building trust and company culture.",
					sources: "https://www.microsoft.com/en-us/worklab/work-trend-index/hybrid-work-is-just-work",
				},
				{
					side:    model.SideCon,
					title:   "Creates inequality and isolation",
					content: "Remote work benefits those with dedicated home offices and stable internet, widening the gap between privileged and less-privileged workers. Many employees report increased feelings of isolation and loneliness when working fully remotely.",
				},
			},
		},
	}
}
