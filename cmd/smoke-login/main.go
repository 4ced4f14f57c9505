package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("OPTIBID_SMOKE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := envOr("OPTIBID_SMOKE_EMAIL", "admin@optibid.com")
	password := envOr("OPTIBID_SMOKE_PASSWORD", "admin123")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 5 * time.Second}

	var session struct {
		AccessToken  string         `json:"access_token"`
		RefreshToken string         `json:"refresh_token"`
		TokenType    string         `json:"token_type"`
		User         map[string]any `json:"user"`
	}
	code, err := call(ctx, client, http.MethodPost, base+"/login", "", map[string]string{
		"email": email, "password": password,
	}, &session)
	if err != nil || code != http.StatusOK {
		log.Fatalf("login %s: status=%d err=%v", email, code, err)
	}
	if session.AccessToken == "" || session.RefreshToken == "" || session.TokenType != "bearer" {
		log.Fatalf("login returned incomplete session: %+v", session)
	}

	var me map[string]any
	code, err = call(ctx, client, http.MethodGet, base+"/me", session.AccessToken, nil, &me)
	if err != nil || code != http.StatusOK {
		log.Fatalf("me: status=%d err=%v", code, err)
	}
	if me["id"] != session.User["id"] {
		log.Fatalf("me returned %v, login returned %v", me["id"], session.User["id"])
	}

	var denied map[string]any
	code, err = call(ctx, client, http.MethodPost, base+"/login", "", map[string]string{
		"email": email, "password": password + "-wrong",
	}, &denied)
	if err != nil || code != http.StatusUnauthorized || denied["detail"] != "Invalid email or password" {
		log.Fatalf("wrong password: status=%d body=%v err=%v", code, denied, err)
	}

	var refreshed map[string]any
	code, err = call(ctx, client, http.MethodPost, base+"/refresh", "", map[string]string{
		"refresh_token": session.RefreshToken,
	}, &refreshed)
	if err != nil || code != http.StatusOK || refreshed["access_token"] == "" {
		log.Fatalf("refresh: status=%d err=%v", code, err)
	}

	fmt.Printf("✅ login smoke test passed: principal=%v role=%v\n", session.User["id"], session.User["role"])
}

func call(ctx context.Context, client *http.Client, method, url, token string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", url, err)
		}
	}
	return resp.StatusCode, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
