package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/waypointhq/waypoint/internal/queue"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS已由中间件处理
	CheckOrigin: func(r *http.Request) bool { return true },
}

// submissionUpdate 推送给客户端的状态帧
type submissionUpdate struct {
	SubmissionID string      `json:"submission_id"`
	Status       string      `json:"status"`
	Error        string      `json:"error,omitempty"`
	Results      interface{} `json:"results,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// StreamSubmission 通过WebSocket推送提交状态
// 轮询队列任务状态，终态时附带逐测试结果后关闭连接
func (h *Handlers) StreamSubmission(c *gin.Context) {
	submissionID := c.Param("id")
	ctx := c.Request.Context()

	if _, err := h.db.GetSubmission(ctx, submissionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "提交记录不存在"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("StreamSubmission升级失败 - Submission: %s, Error: %v", submissionID, err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastStatus := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status := h.currentStatus(c, submissionID)
		if status.Status == lastStatus && !isTerminal(status.Status) {
			continue
		}
		lastStatus = status.Status

		if isTerminal(status.Status) {
			results, err := h.db.GetTestResultsBySubmission(ctx, submissionID)
			if err == nil {
				status.Results = results
			}
		}

		if err := conn.WriteJSON(status); err != nil {
			return
		}
		if isTerminal(status.Status) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// currentStatus 读取提交的当前状态，优先用队列中的实时任务状态
func (h *Handlers) currentStatus(c *gin.Context, submissionID string) submissionUpdate {
	update := submissionUpdate{
		SubmissionID: submissionID,
		Status:       queue.StatusPending,
		Timestamp:    time.Now(),
	}

	if task, err := h.queue.GetTaskStatus(submissionID); err == nil && task != nil {
		update.Status = task.Status
		update.Error = task.Error
		return update
	}

	// 队列记录过期后回落到数据库
	if submission, err := h.db.GetSubmission(c.Request.Context(), submissionID); err == nil {
		update.Status = submission.Status
		update.Error = submission.ErrorMsg
	}
	return update
}

func isTerminal(status string) bool {
	return status == queue.StatusCompleted || status == queue.StatusFailed
}
