package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"warp-quiz-server/internal/domain"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func wsBank(n int) domain.Bank {
	bank := domain.Bank{ID: "ws-bank"}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("q%d", i)
		bank.Questions = append(bank.Questions, domain.Question{
			ID:         id,
			Text:       fmt.Sprintf("Question %d", i),
			Difficulty: "easy",
			Options: []domain.Option{
				{ID: id + "-a", Text: "alpha"},
				{ID: id + "-b", Text: "beta", Correct: true},
				{ID: id + "-c", Text: "gamma"},
			},
		})
	}
	return bank
}

func (ts *testServer) startQuiz(t *testing.T, questions int) {
	t.Helper()
	if err := ts.svc.SetBank(wsBank(questions)); err != nil {
		t.Fatalf("set bank: %v", err)
	}
	if err := ts.svc.Configure(domain.QuizConfig{Title: "LAN Night", NumQuestions: questions, Duration: 5 * time.Minute}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := ts.svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func (ts *testServer) dialWS(t *testing.T, name, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.srv.URL, "http") +
		"/ws?name=" + url.QueryEscape(name) + "&token=" + url.QueryEscape(token)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func (ts *testServer) participantToken(t *testing.T) string {
	t.Helper()
	token, err := ts.tokens.Issue(RoleParticipant)
	if err != nil {
		t.Fatalf("issue participant token: %v", err)
	}
	return token
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) wsMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(wsMessage{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("write %q: %v", msgType, err)
	}
}

func TestWSQuizFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.startQuiz(t, 3)
	token := ts.participantToken(t)

	conn, _, err := ts.dialWS(t, "Alice", token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	msg := readUntil(t, conn, "joined")
	var joined joinedView
	if err := json.Unmarshal(msg.Payload, &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if joined.Title != "LAN Night" || joined.Total != 3 || len(joined.Questions) != 3 {
		t.Fatalf("unexpected joined payload: %+v", joined)
	}
	if joined.DurationSeconds != 300 {
		t.Fatalf("expected 300s duration, got %d", joined.DurationSeconds)
	}
	if bytes.Contains(msg.Payload, []byte("correct")) {
		t.Fatalf("joined payload leaks correctness flags: %s", msg.Payload)
	}

	// Answer everything; the fixture marks the "beta" option correct.
	for i, q := range joined.Questions {
		var optionID string
		for _, o := range q.Options {
			if o.Text == "beta" {
				optionID = o.ID
			}
		}
		sendWS(t, conn, "answer", answerPayload{QuestionID: q.ID, OptionID: optionID})
		ack := readUntil(t, conn, "answerAck")
		var progress progressView
		if err := json.Unmarshal(ack.Payload, &progress); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if progress.Answered != i+1 || progress.Total != 3 {
			t.Fatalf("unexpected progress: %+v", progress)
		}
	}

	// The result and the leaderboard push race each other onto the wire,
	// so collect until both have arrived.
	sendWS(t, conn, "submit", struct{}{})
	var result resultView
	var lb leaderboardPayload
	gotResult, gotBoard := false, false
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !gotResult || !gotBoard {
		var m wsMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("reading after submit: %v", err)
		}
		switch m.Type {
		case "result":
			if err := json.Unmarshal(m.Payload, &result); err != nil {
				t.Fatalf("decode result: %v", err)
			}
			gotResult = true
		case "leaderboard":
			if err := json.Unmarshal(m.Payload, &lb); err != nil {
				t.Fatalf("decode leaderboard: %v", err)
			}
			gotBoard = len(lb.Entries) > 0
		}
	}
	if result.Name != "Alice" || result.Score != 3 || result.Total != 3 || result.TimedOut {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].Name != "Alice" {
		t.Fatalf("unexpected leaderboard: %+v", lb.Entries)
	}
}

func TestWSAnswerErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.startQuiz(t, 2)

	conn, _, err := ts.dialWS(t, "Bob", ts.participantToken(t))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readUntil(t, conn, "joined")

	sendWS(t, conn, "answer", answerPayload{QuestionID: "nope", OptionID: "nope"})
	msg := readUntil(t, conn, "error")
	var errPayload errorPayload
	if err := json.Unmarshal(msg.Payload, &errPayload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errPayload.Message == "" {
		t.Fatalf("expected error message for unknown question")
	}

	sendWS(t, conn, "bogus", struct{}{})
	readUntil(t, conn, "error")
}

func TestWSRejectsNonParticipantToken(t *testing.T) {
	ts := newTestServer(t)
	ts.startQuiz(t, 2)

	admin := ts.adminToken(t)
	_, resp, err := ts.dialWS(t, "Alice", admin)
	if err == nil {
		t.Fatalf("expected handshake failure for admin token")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	_, resp, err = ts.dialWS(t, "Alice", "garbage")
	if err == nil {
		t.Fatalf("expected handshake failure for bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestWSDuplicateNameGetsError(t *testing.T) {
	ts := newTestServer(t)
	ts.startQuiz(t, 2)
	token := ts.participantToken(t)

	first, _, err := ts.dialWS(t, "Alice", token)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	readUntil(t, first, "joined")

	second, _, err := ts.dialWS(t, "Alice", token)
	if err != nil {
		t.Fatalf("second dial: %v", err)
	}
	msg := readUntil(t, second, "error")
	var errPayload errorPayload
	if err := json.Unmarshal(msg.Payload, &errPayload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(errPayload.Message, "taken") {
		t.Fatalf("expected name-taken error, got %q", errPayload.Message)
	}
}

func TestWSEvictedOnReset(t *testing.T) {
	ts := newTestServer(t)
	ts.startQuiz(t, 2)
	ctx := context.Background()

	// Several rounds: the evicted frame must always reach the client
	// before the server closes the connection, not just when the writer
	// happens to win the race against the close.
	for i := 0; i < 10; i++ {
		if i > 0 {
			if err := ts.svc.Start(ctx); err != nil {
				t.Fatalf("restart: %v", err)
			}
		}
		conn, _, err := ts.dialWS(t, "Alice", ts.participantToken(t))
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		readUntil(t, conn, "joined")

		if err := ts.svc.Reset(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		msg := readUntil(t, conn, "evicted")
		var payload errorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("decode evicted: %v", err)
		}
		if payload.Message == "" {
			t.Fatalf("expected eviction reason")
		}

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err == nil {
			t.Fatalf("expected connection closed after eviction")
		}
		conn.Close()
	}
}

func TestWSRequiresNameAndToken(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.srv.Client().Get(ts.srv.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
