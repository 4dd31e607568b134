package clickhouse

import (
	"net/url"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:         "ch",
		Port:         9000,
		Database:     "spintrack",
		User:         "writer",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  30 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: false,
	})
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("dsn must parse: %v", err)
	}
	if u.Scheme != "clickhouse" || u.Host != "ch:9000" || u.Path != "/spintrack" {
		t.Fatalf("unexpected dsn %s", dsn)
	}
	if pw, _ := u.User.Password(); u.User.Username() != "writer" || pw != "p@ss" {
		t.Fatalf("credentials lost in %s", dsn)
	}
	q := u.Query()
	if q.Get("dial_timeout") != "5s" || q.Get("max_execution_time") != "30" || q.Get("async_insert") != "1" || q.Get("wait_for_async_insert") != "0" {
		t.Fatalf("unexpected query %v", q)
	}
	if q.Has("read_timeout") {
		t.Fatalf("zero read timeout must be omitted")
	}
}

func TestBuildDSNHTTP(t *testing.T) {
	dsn := buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "d", User: "u", UseHTTP: true})
	if u, _ := url.Parse(dsn); u.Scheme != "http" {
		t.Fatalf("expected http scheme, got %s", dsn)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}
