package classify

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server     *ghttp.Server
		classifier *Ollama
		prediction Prediction
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		classifier, err = NewOllama(server.URL()+"/", "llama3.2")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		prediction, err = classifier.Classify(context.Background(), "Bio Milch")
	})

	When("the model answers with a category", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var body ollamaChatRequest
					Expect(jsonDecode(r, &body)).To(Succeed())
					Expect(body.Model).To(Equal("llama3.2"))
					Expect(body.Format).To(Equal("json"))
					Expect(body.Stream).To(BeFalse())
					Expect(body.Messages).To(HaveLen(2))
					Expect(body.Messages[1].Content).To(ContainSubstring(`"Bio Milch"`))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"category": "fridge", "confidence": 0.8}`},
					Done:    true,
				}),
			))
		})

		It("should return the prediction", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(prediction).To(Equal(Prediction{Category: Fridge, Confidence: 0.8}))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("should return the status and body", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the model answers with something unusable", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "I think it goes in the fridge"},
				Done:    true,
			}))
		})

		It("should return a parse error", func() {
			Expect(err).To(MatchError(ContainSubstring("parsing prediction")))
		})
	})

	When("the response is not JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, "<html>"))
		})

		It("should return a decoding error", func() {
			Expect(err).To(MatchError(ContainSubstring("decoding response")))
		})
	})
})

var _ = Describe("NewOllama", func() {
	It("should default the URL and model", func() {
		o, err := NewOllama("", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(o.baseURL).To(Equal("http://localhost:11434"))
		Expect(o.model).To(Equal("llama3.2"))
		Expect(o.Close()).To(Succeed())
	})
})

var _ = Describe("NewGemini", func() {
	It("should require an API key", func() {
		g, err := NewGemini("", "")
		Expect(g).To(BeNil())
		Expect(err).To(MatchError(ContainSubstring("api key is required")))
	})
})

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
