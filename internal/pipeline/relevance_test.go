package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"

	"agora.app/verdict/common/llm"
	"agora.app/verdict/internal/pipeline"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RelevanceFilter", func() {
	var (
		filter  *pipeline.RelevanceFilter
		mockLLM *mockLLMClient
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockLLM = &mockLLMClient{}
		filter = pipeline.NewRelevanceFilter(mockLLM)
	})

	relevanceResponse := func(isRelevant bool, reasoning string) func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
		return func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
			data, _ := json.Marshal(map[string]any{
				"is_relevant": isRelevant,
				"reasoning":   reasoning,
			})
			json.Unmarshal(data, result)
			return &llm.Response{}, nil
		}
	}

	Context("accepted argument", func() {
		It("returns an accepting verdict", func() {
			mockLLM.chatFn = relevanceResponse(true, "Contains a checkable claim about productivity statistics.")

			verdict, err := filter.Evaluate(ctx, "Should remote work be the default?", "Remote work boosts output", "Studies show a 13% productivity gain.")

			Expect(err).NotTo(HaveOccurred())
			Expect(verdict.Accepted).To(BeTrue())
			Expect(mockLLM.callCount).To(Equal(1))
		})

		It("sends the question, title, and content to the model", func() {
			var captured llm.Request
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				captured = req
				return relevanceResponse(true, "ok")(ctx, req, result)
			}

			_, err := filter.Evaluate(ctx, "Should remote work be the default?", "Remote work boosts output", "Studies show a gain.")

			Expect(err).NotTo(HaveOccurred())
			Expect(captured.UserPrompt).To(ContainSubstring("Should remote work be the default?"))
			Expect(captured.UserPrompt).To(ContainSubstring("Remote work boosts output"))
			Expect(captured.UserPrompt).To(ContainSubstring("Studies show a gain."))
			Expect(captured.SchemaName).To(Equal("relevance_response"))
		})
	})

	Context("rejected argument", func() {
		It("carries the model's reasoning", func() {
			mockLLM.chatFn = relevanceResponse(false, "The argument is about cooking, not the debate question.")

			verdict, err := filter.Evaluate(ctx, "Should remote work be the default?", "My lasagna recipe", "Layer the pasta.")

			Expect(err).NotTo(HaveOccurred())
			Expect(verdict.Accepted).To(BeFalse())
			Expect(verdict.Reasoning).To(Equal("The argument is about cooking, not the debate question."))
		})

		It("substitutes a reason when the model rejects without one", func() {
			mockLLM.chatFn = relevanceResponse(false, "   ")

			verdict, err := filter.Evaluate(ctx, "Should remote work be the default?", "Spam", "Buy now!!!")

			Expect(err).NotTo(HaveOccurred())
			Expect(verdict.Accepted).To(BeFalse())
			Expect(verdict.Reasoning).NotTo(BeEmpty())
		})
	})

	Context("reasoning service failure", func() {
		It("fails closed with an unavailability reason", func() {
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				return nil, context.Canceled
			}

			verdict, err := filter.Evaluate(ctx, "q", "t", "c")

			Expect(err).To(HaveOccurred())
			Expect(verdict).NotTo(BeNil())
			Expect(verdict.Accepted).To(BeFalse())
			Expect(verdict.Reasoning).To(ContainSubstring("unavailable"))
			Expect(mockLLM.callCount).To(Equal(1)) // No retries on cancellation
		})

		It("retries transient errors before deciding", func() {
			attempts := 0
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				attempts++
				if attempts < 2 {
					return nil, errors.New("connection refused")
				}
				return relevanceResponse(true, "fine")(ctx, req, result)
			}

			verdict, err := filter.Evaluate(ctx, "q", "t", "c")

			Expect(err).NotTo(HaveOccurred())
			Expect(verdict.Accepted).To(BeTrue())
			Expect(mockLLM.callCount).To(Equal(2))
		})
	})
})
