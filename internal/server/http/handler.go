package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nugget/internal/chat"
	"nugget/internal/convo"
	"nugget/internal/exec"
)

// Protocol-level errors; turn-level prose comes from the chat service.
const (
	msgBadRequest = "요청 본문을 해석할 수 없습니다."
	msgBadTable   = "테이블 데이터를 해석할 수 없습니다."
)

// chatRequest is the POST /api/chat body. File rows ride along either as
// decoded records or as raw CSV text; uploads are out of scope.
type chatRequest struct {
	Question       string           `json:"question"`
	ConversationID string           `json:"conversation_id"`
	Source         string           `json:"source"`
	PropertyID     string           `json:"property_id"`
	Table          []map[string]any `json:"table,omitempty"`
	TableCSV       string           `json:"table_csv,omitempty"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": chat.StatusError, "message": msgBadRequest})
		return
	}

	table, err := tableOf(req)
	if err != nil {
		s.logger.Warn("table decode failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": chat.StatusError, "message": msgBadTable})
		return
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = "default"
	}

	env := s.chat.Handle(c.Request.Context(), chat.Request{
		ConversationID: conversationID,
		Question:       req.Question,
		Source:         convo.Source(req.Source),
		PropertyID:     req.PropertyID,
		Table:          table,
	})
	c.JSON(http.StatusOK, env)
}

func tableOf(req chatRequest) (*exec.Table, error) {
	switch {
	case len(req.Table) > 0:
		return exec.FromRecords(req.Table), nil
	case strings.TrimSpace(req.TableCSV) != "":
		return exec.FromCSV(strings.NewReader(req.TableCSV))
	default:
		return nil, nil
	}
}
