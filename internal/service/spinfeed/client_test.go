package spinfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestParseFrame(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{`{"number": 17}`, []int{17}},
		{`{"type":"spin","data":[1,2,3]}`, []int{1, 2, 3}},
		{`{"type":"spin","data":5}`, []int{5}},
		{`{"type":"ping"}`, nil},
	}
	for _, c := range cases {
		got, err := parseFrame([]byte(c.in))
		if err != nil {
			t.Fatalf("%s: %v", c.in, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("%s: got %v want %v", c.in, got, c.want)
		}
	}
	if _, err := parseFrame([]byte("not json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestClientReadsSpins(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"number": 7}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"spin","data":[0,36]}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := New("ws"+strings.TrimPrefix(srv.URL, "http"), "table-1", time.Millisecond, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if !c.IsConnected() {
		t.Fatal("expected connected")
	}

	spins, _ := c.Read(ctx)
	var got []int
	for len(got) < 3 {
		select {
		case s := <-spins:
			if s == nil {
				t.Fatalf("stream closed early after %v", got)
			}
			if s.Source != "table-1" || s.ObservedAt.IsZero() {
				t.Fatalf("unexpected spin %+v", s)
			}
			got = append(got, s.Number)
		case <-ctx.Done():
			t.Fatalf("timed out with %v", got)
		}
	}
	if !reflect.DeepEqual(got, []int{7, 0, 36}) {
		t.Fatalf("got %v", got)
	}
}
