package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/characters":
			_, _ = w.Write([]byte(`{"success":true,"characters":[{"id":"marriage","name":"Pandit Ravi Sharma","specialty":"Marriage","emoji":"💍"}],"count":1}`))
		case "/api/v1/chat":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if calls > 0 {
				assert.Equal(t, "s-9", body["session_id"])
			}
			calls++
			_, _ = w.Write([]byte(`{"success":true,"response":"Namaste|||Yog ban raha hai","session_id":"s-9","user_id":3,
				"character":{"id":"marriage","name":"Pandit Ravi Sharma"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestCharactersCmd(t *testing.T) {
	srv := fakeServer(t)
	out := execute(t, "", "characters", "--server", srv.URL)
	assert.Contains(t, out, "marriage")
	assert.Contains(t, out, "Pandit Ravi Sharma")
}

func TestChatCmd(t *testing.T) {
	srv := fakeServer(t)
	out := execute(t, "When will I marry?\n\nAnd next year?\nexit\n",
		"chat", "--server", srv.URL, "--delay", "0",
		"--name", "Rahul", "--date", "15/08/1990", "--time", "14:30", "--place", "Mumbai", "--character", "marriage")

	assert.Equal(t, 2, strings.Count(out, "Pandit Ravi Sharma: Namaste\n"))
	assert.Contains(t, out, "Pandit Ravi Sharma: Yog ban raha hai")
	assert.Contains(t, out, "May the stars guide you always.")
}

func TestChatCmd_RequiresBirthDetails(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"chat", "--name", "Rahul"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
