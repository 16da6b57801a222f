package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	appMiddleware "github.com/markdave123-py/Contexta/internal/api/middlewares"
	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// QueryEmbedder embeds a single query string for similarity search.
// Satisfied by internal/embedding.Client; kept as a local interface so the
// handler can be tested without a live embedding provider.
type QueryEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatHandler answers retrieval queries against one document version's
// chunks (§9 SUPPLEMENTED FEATURES: pgvector similarity search kept from the
// teacher's SearchDocumentChunks, adapted to citation retrieval). It returns
// the matching chunks with their page provenance rather than synthesizing a
// natural-language answer — that step belongs to the out-of-scope chat UI.
type ChatHandler struct {
	embeddings repo.Embeddings
	embedder   QueryEmbedder
}

func NewChatHandler(embeddings repo.Embeddings, embedder QueryEmbedder) *ChatHandler {
	return &ChatHandler{embeddings: embeddings, embedder: embedder}
}

type queryRequest struct {
	VersionID string `json:"versionId"`
	Query     string `json:"query"`
	TopK      int    `json:"topK"`
}

type citedChunk struct {
	ChunkID   string `json:"chunkId"`
	Text      string `json:"text"`
	PageStart int    `json:"pageStart"`
	PageEnd   int    `json:"pageEnd"`
}

// Query handles POST /api/versions/{versionID}/query.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	if _, ok := appMiddleware.TenantID(r.Context()); !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.VersionID = firstNonEmpty(chi.URLParam(r, "versionID"), req.VersionID)
	if req.VersionID == "" || req.Query == "" {
		http.Error(w, "versionId and query are required", http.StatusBadRequest)
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	vecs, err := h.embedder.EmbedTexts(r.Context(), []string{req.Query})
	if err != nil || len(vecs) == 0 {
		http.Error(w, "embedding failed", http.StatusInternalServerError)
		return
	}

	chunks, err := h.embeddings.SearchSimilar(r.Context(), req.VersionID, vecs[0], req.TopK)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toCitedChunks(chunks))
}

func toCitedChunks(chunks []models.DocumentChunk) []citedChunk {
	out := make([]citedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = citedChunk{ChunkID: c.ID, Text: c.Text, PageStart: c.PageStart, PageEnd: c.PageEnd}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
