package search_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"agora.app/verdict/common/search"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"results":[]}`))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func() search.Client {
		client, err := search.New(search.Config{
			APIKey:  "test-key",
			BaseURL: server.URL,
		})
		Expect(err).NotTo(HaveOccurred())
		return client
	}

	It("requires an API key", func() {
		_, err := search.New(search.Config{})
		Expect(err).To(MatchError(ContainSubstring("API key is required")))
	})

	It("sends the query with configured depth and result count", func() {
		var captured struct {
			Query       string `json:"query"`
			MaxResults  int    `json:"max_results"`
			SearchDepth string `json:"search_depth"`
		}
		var authHeader string

		handler = func(w http.ResponseWriter, r *http.Request) {
			authHeader = r.Header.Get("Authorization")
			Expect(json.NewDecoder(r.Body).Decode(&captured)).To(Succeed())
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"results":[]}`))
		}

		client := newClient()
		_, err := client.Search(context.Background(), "renewable energy costs fell below coal in 2023")
		Expect(err).NotTo(HaveOccurred())

		Expect(authHeader).To(Equal("Bearer test-key"))
		Expect(captured.Query).To(Equal("renewable energy costs fell below coal in 2023"))
		Expect(captured.MaxResults).To(Equal(10))
		Expect(captured.SearchDepth).To(Equal("advanced"))
	})

	It("maps result fields onto sources", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"results":[
				{"title":"IEA report","url":"https://iea.org/report","content":"Solar costs fell 12%","score":0.91},
				{"title":"Blog post","url":"https://example.com/post","content":"Opinions","score":0.34}
			]}`))
		}

		client := newClient()
		sources, err := client.Search(context.Background(), "solar costs")
		Expect(err).NotTo(HaveOccurred())

		Expect(sources).To(HaveLen(2))
		Expect(sources[0].Title).To(Equal("IEA report"))
		Expect(sources[0].URL).To(Equal("https://iea.org/report"))
		Expect(sources[0].Snippet).To(Equal("Solar costs fell 12%"))
		Expect(sources[0].Relevance).To(BeNumerically("~", 0.91, 1e-9))
		Expect(sources[1].Relevance).To(BeNumerically("~", 0.34, 1e-9))
	})

	It("returns an empty slice when the provider finds nothing", func() {
		client := newClient()
		sources, err := client.Search(context.Background(), "nothing to see")
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(BeEmpty())
	})

	DescribeTable("maps upstream availability failures onto ErrUnavailable",
		func(status int) {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}

			client := newClient()
			_, err := client.Search(context.Background(), "any claim")
			Expect(err).To(MatchError(search.ErrUnavailable))
		},
		Entry("rate limited", http.StatusTooManyRequests),
		Entry("internal error", http.StatusInternalServerError),
		Entry("bad gateway", http.StatusBadGateway),
		Entry("service unavailable", http.StatusServiceUnavailable),
	)

	It("treats malformed response bodies as unavailable", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"results": not json`))
		}

		client := newClient()
		_, err := client.Search(context.Background(), "any claim")
		Expect(err).To(MatchError(search.ErrUnavailable))
	})

	It("does not mask client misconfiguration as an outage", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
		}

		client := newClient()
		_, err := client.Search(context.Background(), "any claim")
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(search.ErrUnavailable))
		Expect(err.Error()).To(ContainSubstring("invalid api key"))
	})

	It("returns the context error when the caller cancels", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"results":[]}`))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		client := newClient()
		_, err := client.Search(ctx, "any claim")
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(err).NotTo(MatchError(search.ErrUnavailable))
	})
})
