package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dialogue/internal/domain"
)

type searchResponse struct {
	Query   string                      `json:"query"`
	Results []domain.ScoredConversation `json:"results"`
}

// evaluateRequest scores either a reference/generated pair or a dialogue
// against both characters.
type evaluateRequest struct {
	Reference  string            `json:"reference"`
	Generated  string            `json:"generated"`
	CharacterA *domain.Character `json:"character_a"`
	CharacterB *domain.Character `json:"character_b"`
	Dialogue   string            `json:"dialogue"`
}

// writeError maps domain errors to status codes. The cause is attached to the
// context for the request log.
func writeError(c *gin.Context, err error, message string) {
	c.Error(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = "Conversation not found"
	case errors.Is(err, domain.ErrInvalid):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrDuplicate):
		status = http.StatusConflict
		message = "Conversation already exists"
	case errors.Is(err, domain.ErrEncoding):
		status = http.StatusBadGateway
		message = "Embedding backend unavailable"
	case errors.Is(err, domain.ErrDimensionMismatch):
		status = http.StatusConflict
		message = err.Error()
	}
	c.JSON(status, gin.H{"error": message})
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return 0, false
	}
	return id, true
}

func (s *Server) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Dialogue conversation API running"})
}

func (s *Server) createConversation(c *gin.Context) {
	var req domain.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	conv, err := s.deps.Saver.Save(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to save conversation")
		return
	}

	c.JSON(http.StatusCreated, conv)
}

func (s *Server) listConversations(c *gin.Context) {
	limit := s.deps.ListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	convs, err := s.deps.Store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, "Failed to fetch conversations")
		return
	}

	c.JSON(http.StatusOK, convs)
}

func (s *Server) getConversation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	conv, err := s.deps.Store.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to fetch conversation")
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (s *Server) updateFeedback(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var update domain.FeedbackUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	conv, err := s.deps.Feedback.Update(c.Request.Context(), id, update)
	if err != nil {
		writeError(c, err, "Failed to update feedback")
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (s *Server) search(c *gin.Context) {
	// an empty q is a valid, if uninformative, query
	query, ok := c.GetQuery("q")
	if !ok {
		query, ok = c.GetQuery("query")
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter q is required"})
		return
	}

	topK := 0
	if raw := c.Query("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid k"})
			return
		}
		topK = n
	}

	results, err := s.deps.Searcher.Search(c.Request.Context(), query, topK)
	if err != nil {
		writeError(c, err, "Search failed")
		return
	}

	c.JSON(http.StatusOK, searchResponse{Query: query, Results: results})
}

func (s *Server) evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.CharacterA != nil || req.CharacterB != nil {
		if req.CharacterA == nil || req.CharacterB == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "character_a and character_b are both required"})
			return
		}
		eval, err := s.deps.Evaluator.Evaluate(c.Request.Context(), *req.CharacterA, *req.CharacterB, req.Dialogue)
		if err != nil {
			writeError(c, err, "Evaluation failed")
			return
		}
		c.JSON(http.StatusOK, eval)
		return
	}

	score, err := s.deps.Evaluator.Score(c.Request.Context(), req.Reference, req.Generated)
	if err != nil {
		writeError(c, err, "Evaluation failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"score": score})
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.deps.Stats.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to compute stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}
