package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	os.Exit(get(adminURL(*baseURL, "/admin/v1/state", nil)))
}

func roundsCmd(args []string) {
	fs := flag.NewFlagSet("rounds", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(*limit))
	os.Exit(get(adminURL(*baseURL, "/admin/v1/rounds", q)))
}

func adminURL(base, path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// get prints the response body and returns the process exit code.
func get(u string) int {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}
