package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/modules/repo"
	"github.com/aiwendy/roundtable/internal/pkg/llm"
	"github.com/aiwendy/roundtable/internal/pkg/prompt"
)

// KnowledgeRetriever embeds a query and searches the caller's knowledge
// base, restricted to one project when projectID is set. Retrieval is
// advisory: every failure degrades to "no context".
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, query string, topK, maxCandidates int) ([]model.KnowledgeHit, error)
}

type knowledgeRetriever struct {
	r      repo.KnowledgeRepo
	router *llm.Router
	embed  []llm.Attempt
	log    *zap.Logger
}

func NewKnowledgeRetriever(r repo.KnowledgeRepo, router *llm.Router, embed []llm.Attempt, log *zap.Logger) KnowledgeRetriever {
	return &knowledgeRetriever{r: r, router: router, embed: embed, log: log}
}

func (k *knowledgeRetriever) Retrieve(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, query string, topK, maxCandidates int) ([]model.KnowledgeHit, error) {
	if query == "" || len(k.embed) == 0 {
		return nil, nil
	}

	// An empty knowledge base is the common case; skip the paid embedding
	// call entirely.
	n, err := k.r.CountChunks(ctx, userID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	vec, err := k.router.Embed(ctx, k.embed, query)
	if err != nil {
		return nil, err
	}
	return k.r.SearchByEmbedding(ctx, userID, projectID, vec, topK, maxCandidates)
}

// kbGate is the request-scoped retrieval gate. It memoizes formatted
// knowledge blocks per stage key so one chat run never retrieves twice for
// the same stage, and swallows retrieval errors.
type kbGate struct {
	retriever     KnowledgeRetriever
	log           *zap.Logger
	userID        uuid.UUID
	projectID     *uuid.UUID
	timing        string
	topK          int
	maxCandidates int
	cache         map[string]string
}

func newKBGate(retriever KnowledgeRetriever, log *zap.Logger, userID uuid.UUID, projectID *uuid.UUID, timing string, topK, maxCandidates int) *kbGate {
	return &kbGate{
		retriever:     retriever,
		log:           log,
		userID:        userID,
		projectID:     projectID,
		timing:        timing,
		topK:          topK,
		maxCandidates: maxCandidates,
		cache:         make(map[string]string),
	}
}

func (g *kbGate) enabled() bool {
	return g.timing != model.KBTimingOff && g.topK > 0 && g.retriever != nil
}

func (g *kbGate) text(ctx context.Context, stageKey, query string) string {
	if !g.enabled() {
		return ""
	}
	cacheKey := g.timing + ":" + stageKey
	if cached, ok := g.cache[cacheKey]; ok {
		return cached
	}
	hits, err := g.retriever.Retrieve(ctx, g.userID, g.projectID, query, g.topK, g.maxCandidates)
	if err != nil {
		g.log.Warn("knowledge retrieval failed, continuing without context",
			zap.String("stage", stageKey), zap.Error(err))
		g.cache[cacheKey] = ""
		return ""
	}
	text := prompt.FormatKnowledge(hits)
	g.cache[cacheKey] = text
	return text
}
