package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agora.app/verdict/common/id"
	"agora.app/verdict/internal/model"
	"agora.app/verdict/internal/pipeline"
	"agora.app/verdict/internal/queue"
	"agora.app/verdict/internal/service"
	"agora.app/verdict/internal/store"
)

var _ = Describe("ArgumentService", func() {
	var (
		svc       service.ArgumentService
		topics    *mockTopicStore
		arguments *mockArgumentStore
		relevance *mockRelevanceGate
		producer  *mockProducer
		txRunner  *mockTxRunner
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		topics = &mockTopicStore{
			getByIDFn: func(_ context.Context, topicID int64) (*model.Topic, error) {
				return &model.Topic{ID: topicID, Question: "Should remote work become the default?", Slug: "remote-work"}, nil
			},
		}
		arguments = &mockArgumentStore{}
		relevance = &mockRelevanceGate{}
		producer = &mockProducer{}
		txRunner = &mockTxRunner{provider: &mockStoreProvider{
			topics:    topics,
			arguments: arguments,
			matches:   &mockMatchStore{},
		}}
		svc = service.NewArgumentService(topics, arguments, txRunner, relevance, producer, nil)
		Expect(id.Init(1)).To(Succeed())
	})

	Describe("Submit", func() {
		It("persists an accepted argument and enqueues verification", func() {
			relevance.evaluateFn = func(_ context.Context, question, title, _ string) (*pipeline.RelevanceVerdict, error) {
				Expect(question).To(Equal("Should remote work become the default?"))
				Expect(title).To(Equal("Commutes waste billions of hours"))
				return &pipeline.RelevanceVerdict{Accepted: true, Reasoning: "directly addresses the question"}, nil
			}

			result, err := svc.Submit(ctx, service.SubmitArgumentParams{
				TopicID: 100,
				Side:    model.SidePro,
				Title:   "  Commutes waste billions of hours  ",
				Content: "Average commutes add nearly an hour per day for most workers.",
				Author:  "dana",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Argument.ID).NotTo(BeZero())
			Expect(result.Argument.TopicID).To(Equal(int64(100)))
			Expect(result.Argument.Title).To(Equal("Commutes waste billions of hours"))
			Expect(result.Enqueued).To(BeTrue())

			Expect(arguments.created).To(HaveLen(1))
			Expect(arguments.created[0].Side).To(Equal(model.SidePro))
			Expect(txRunner.calls).To(Equal(1))

			Expect(producer.enqueued).To(HaveLen(1))
			Expect(producer.enqueued[0].TaskType).To(Equal(queue.TaskTypeVerifyArgument))
			Expect(*producer.enqueued[0].ArgumentID).To(Equal(result.Argument.ID))
		})

		It("rejects submissions missing required fields", func() {
			_, err := svc.Submit(ctx, service.SubmitArgumentParams{
				TopicID: 100,
				Side:    model.SidePro,
				Title:   "   ",
				Content: "body",
			})
			Expect(err).To(MatchError(ContainSubstring("required")))
			Expect(relevance.calls).To(BeZero())
			Expect(arguments.created).To(BeEmpty())
		})

		It("rejects an unknown side", func() {
			params := submitParams()
			params.Side = "neutral"

			_, err := svc.Submit(ctx, params)
			Expect(err).To(MatchError(ContainSubstring("side must be")))
			Expect(arguments.created).To(BeEmpty())
		})

		It("returns ErrTopicNotFound for a missing topic", func() {
			topics.getByIDFn = func(_ context.Context, _ int64) (*model.Topic, error) {
				return nil, store.ErrNotFound
			}

			_, err := svc.Submit(ctx, submitParams())
			Expect(err).To(MatchError(service.ErrTopicNotFound))
		})

		It("requires the empty side on a lopsided topic", func() {
			arguments.countBySideFn = func(_ context.Context, _ int64) (int64, int64, error) {
				return 0, 2, nil
			}
			params := submitParams()
			params.Side = model.SideCon

			_, err := svc.Submit(ctx, params)
			var balanceErr *service.BalanceError
			Expect(errors.As(err, &balanceErr)).To(BeTrue())
			Expect(balanceErr.RequiredSide).To(Equal(model.SidePro))
			Expect(relevance.calls).To(BeZero())
			Expect(arguments.created).To(BeEmpty())
		})

		It("accepts the side a lopsided topic is missing", func() {
			arguments.countBySideFn = func(_ context.Context, _ int64) (int64, int64, error) {
				return 3, 0, nil
			}
			params := submitParams()
			params.Side = model.SideCon

			result, err := svc.Submit(ctx, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Argument.Side).To(Equal(model.SideCon))
			Expect(arguments.created).To(HaveLen(1))
		})

		It("rejects off-topic submissions with the filter's reasoning", func() {
			relevance.evaluateFn = func(_ context.Context, _, _, _ string) (*pipeline.RelevanceVerdict, error) {
				return &pipeline.RelevanceVerdict{Accepted: false, Reasoning: "The argument discusses diet, not remote work."}, nil
			}

			_, err := svc.Submit(ctx, submitParams())
			var rejection *service.RejectionError
			Expect(errors.As(err, &rejection)).To(BeTrue())
			Expect(rejection.Reasoning).To(ContainSubstring("diet"))
			Expect(arguments.created).To(BeEmpty())
			Expect(txRunner.calls).To(BeZero())
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("fails closed when the relevance filter is unavailable", func() {
			relevance.evaluateFn = func(_ context.Context, _, _, _ string) (*pipeline.RelevanceVerdict, error) {
				return &pipeline.RelevanceVerdict{
					Accepted:  false,
					Reasoning: "Argument verification is temporarily unavailable. Your submission was not saved; please try again shortly.",
				}, errors.New("llm timeout")
			}

			_, err := svc.Submit(ctx, submitParams())
			var rejection *service.RejectionError
			Expect(errors.As(err, &rejection)).To(BeTrue())
			Expect(rejection.Reasoning).To(ContainSubstring("unavailable"))
			Expect(arguments.created).To(BeEmpty())
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("still returns the argument when enqueueing fails", func() {
			producer.enqueueFn = func(_ context.Context, _ queue.TaskMessage) error {
				return errors.New("redis down")
			}

			result, err := svc.Submit(ctx, submitParams())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Enqueued).To(BeFalse())
			Expect(arguments.created).To(HaveLen(1))
		})

		It("propagates a failed create without enqueueing", func() {
			arguments.createFn = func(_ context.Context, _ *model.Argument) error {
				return errors.New("db down")
			}

			_, err := svc.Submit(ctx, submitParams())
			Expect(err).To(MatchError(ContainSubstring("creating argument")))
			Expect(producer.enqueued).To(BeEmpty())
		})
	})

	Describe("Vote", func() {
		It("applies a vote and returns the new count", func() {
			arguments.addVotesFn = func(_ context.Context, argumentID int64, delta int32) (int32, error) {
				Expect(argumentID).To(Equal(int64(42)))
				Expect(delta).To(Equal(int32(-1)))
				return 6, nil
			}

			votes, err := svc.Vote(ctx, 42, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(votes).To(Equal(int32(6)))
		})

		It("rejects deltas other than plus or minus one", func() {
			called := false
			arguments.addVotesFn = func(_ context.Context, _ int64, _ int32) (int32, error) {
				called = true
				return 0, nil
			}

			_, err := svc.Vote(ctx, 42, 2)
			Expect(err).To(MatchError(ContainSubstring("delta")))
			Expect(called).To(BeFalse())
		})

		It("returns ErrArgumentNotFound for a missing argument", func() {
			arguments.addVotesFn = func(_ context.Context, _ int64, _ int32) (int32, error) {
				return 0, store.ErrNotFound
			}

			_, err := svc.Vote(ctx, 42, 1)
			Expect(err).To(MatchError(service.ErrArgumentNotFound))
		})
	})
})

func submitParams() service.SubmitArgumentParams {
	return service.SubmitArgumentParams{
		TopicID: 100,
		Side:    model.SidePro,
		Title:   "Commutes waste billions of hours",
		Content: "Average commutes add nearly an hour per day for most workers.",
	}
}
