package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agora.app/verdict/common/llm"
	"agora.app/verdict/internal/model"
	"agora.app/verdict/internal/pipeline"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func proArg(id int64, title string) model.Argument {
	return model.Argument{ID: id, Side: model.SidePro, Title: title, Content: "content of " + title}
}

func conArg(id int64, title string) model.Argument {
	return model.Argument{ID: id, Side: model.SideCon, Title: title, Content: "content of " + title}
}

var _ = Describe("Matcher", func() {
	var (
		matcher *pipeline.Matcher
		mockLLM *mockLLMClient
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockLLM = &mockLLMClient{}
		matcher = pipeline.NewMatcher(mockLLM)
	})

	matchesResponse := func(matches ...map[string]any) func(result any) {
		return func(result any) {
			data, _ := json.Marshal(map[string]any{"matches": matches})
			json.Unmarshal(data, result)
		}
	}

	Context("empty sides", func() {
		It("returns no pairs without calling the model when pros are empty", func() {
			pairs, err := matcher.Match(ctx, "q", nil, []model.Argument{conArg(2001, "con")})

			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(BeEmpty())
			Expect(mockLLM.callCount).To(Equal(0))
		})

		It("returns no pairs without calling the model when cons are empty", func() {
			pairs, err := matcher.Match(ctx, "q", []model.Argument{proArg(1001, "pro")}, nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(BeEmpty())
			Expect(mockLLM.callCount).To(Equal(0))
		})
	})

	Context("single batch", func() {
		It("returns validated pairs with reasons", func() {
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				matchesResponse(
					map[string]any{"pro_id": 1001, "con_id": 2001, "reason": "Both dispute the productivity numbers."},
					map[string]any{"pro_id": 1002, "con_id": 2002, "reason": "Both dispute office costs."},
				)(result)
				return &llm.Response{}, nil
			}

			pros := []model.Argument{proArg(1001, "productivity up"), proArg(1002, "costs down")}
			cons := []model.Argument{conArg(2001, "productivity down"), conArg(2002, "costs up")}

			pairs, err := matcher.Match(ctx, "Should remote work be the default?", pros, cons)

			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(2))
			Expect(pairs[0]).To(Equal(pipeline.MatchPair{ProID: 1001, ConID: 2001, Reason: "Both dispute the productivity numbers."}))
			Expect(pairs[1].ProID).To(Equal(int64(1002)))
			Expect(mockLLM.callCount).To(Equal(1))
		})

		It("drops pairs referencing unknown IDs and deduplicates", func() {
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				matchesResponse(
					map[string]any{"pro_id": 1001, "con_id": 2001, "reason": "valid"},
					map[string]any{"pro_id": 1001, "con_id": 2001, "reason": "duplicate"},
					map[string]any{"pro_id": 9999, "con_id": 2001, "reason": "invented pro"},
					map[string]any{"pro_id": 1001, "con_id": 8888, "reason": "invented con"},
					map[string]any{"pro_id": 2001, "con_id": 1001, "reason": "sides swapped"},
				)(result)
				return &llm.Response{}, nil
			}

			pros := []model.Argument{proArg(1001, "pro")}
			cons := []model.Argument{conArg(2001, "con")}

			pairs, err := matcher.Match(ctx, "q", pros, cons)

			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(1))
			Expect(pairs[0].Reason).To(Equal("valid"))
		})

		It("sends IDs, titles, and contents to the model", func() {
			var captured llm.Request
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				captured = req
				matchesResponse()(result)
				return &llm.Response{}, nil
			}

			_, err := matcher.Match(ctx, "the question", []model.Argument{proArg(1001, "pro title")}, []model.Argument{conArg(2001, "con title")})

			Expect(err).NotTo(HaveOccurred())
			Expect(captured.UserPrompt).To(ContainSubstring("the question"))
			Expect(captured.UserPrompt).To(ContainSubstring("ID: 1001"))
			Expect(captured.UserPrompt).To(ContainSubstring("pro title"))
			Expect(captured.UserPrompt).To(ContainSubstring("ID: 2001"))
			Expect(captured.UserPrompt).To(ContainSubstring("con title"))
			Expect(captured.SchemaName).To(Equal("match_response"))
		})
	})

	Context("batching", func() {
		It("splits sides larger than ten into batch pairs and merges results", func() {
			var prompts []string
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				prompts = append(prompts, req.UserPrompt)
				if len(prompts) == 1 {
					matchesResponse(map[string]any{"pro_id": 1001, "con_id": 2001, "reason": "first batch"})(result)
				} else {
					matchesResponse(map[string]any{"pro_id": 1011, "con_id": 2001, "reason": "second batch"})(result)
				}
				return &llm.Response{}, nil
			}

			pros := make([]model.Argument, 12)
			for i := range pros {
				pros[i] = proArg(int64(1001+i), fmt.Sprintf("pro %d", i))
			}
			cons := []model.Argument{conArg(2001, "con")}

			pairs, err := matcher.Match(ctx, "q", pros, cons)

			Expect(err).NotTo(HaveOccurred())
			Expect(mockLLM.callCount).To(Equal(2))
			Expect(pairs).To(HaveLen(2))
			Expect(pairs[0].Reason).To(Equal("first batch"))
			Expect(pairs[1].Reason).To(Equal("second batch"))

			// First batch carries the first ten pros, second batch the remainder
			Expect(prompts[0]).To(ContainSubstring("ID: 1001"))
			Expect(prompts[0]).NotTo(ContainSubstring("ID: 1011"))
			Expect(prompts[1]).To(ContainSubstring("ID: 1011"))
			Expect(prompts[1]).NotTo(ContainSubstring("ID: 1001"))
		})
	})

	Context("reasoning failures", func() {
		It("retries transient errors", func() {
			attempts := 0
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				attempts++
				if attempts < 2 {
					return nil, errors.New("connection refused")
				}
				matchesResponse(map[string]any{"pro_id": 1001, "con_id": 2001, "reason": "ok"})(result)
				return &llm.Response{}, nil
			}

			pairs, err := matcher.Match(ctx, "q", []model.Argument{proArg(1001, "p")}, []model.Argument{conArg(2001, "c")})

			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(1))
			Expect(mockLLM.callCount).To(Equal(2))
		})

		It("fails when the reasoning service stays unavailable", func() {
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				return nil, context.Canceled
			}

			pairs, err := matcher.Match(ctx, "q", []model.Argument{proArg(1001, "p")}, []model.Argument{conArg(2001, "c")})

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("matching arguments"))
			Expect(pairs).To(BeNil())
		})
	})
})
