package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The mini-program client connects from its own origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleTaskEvents streams task state transitions over a websocket. The
// current snapshot is sent immediately, then one message per transition;
// the connection closes after a terminal state.
func (s *Server) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "缺少 task_id 参数"})
		return
	}

	task := s.pipeline.Manager().Get(taskID)
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "任务不存在"})
		return
	}

	// Subscribe before reading the snapshot so no transition is missed.
	events, cancel := s.pipeline.Manager().Watch(taskID)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "task_id", taskID, "error", err)
		return
	}
	defer conn.Close()

	snapshot := task.Snapshot()
	if err := conn.WriteJSON(taskResponse(snapshot)); err != nil {
		return
	}
	if snapshot.Status.Terminal() {
		return
	}

	// Detect client-side close so the handler does not leak.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(taskResponse(update)); err != nil {
				return
			}
			if update.Status.Terminal() {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
