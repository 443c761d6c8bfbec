package main

import (
	"bytes"
	"encoding/json"
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

var httpClient = &http.Client{Timeout: 5 * time.Second}

// getCmd prints the body of GET <url><path>; non-2xx exits 1.
func getCmd(name, path string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	printGet(*baseURL, path)
}

func hintsCmd(args []string) {
	fs := flag.NewFlagSet("hints", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	x := fs.Int("x", 0, "x coordinate")
	y := fs.Int("y", 0, "y coordinate")
	dir := fs.Int("direction", 0, "0=N 1=E 2=S 3=W")
	_ = fs.Parse(args)

	q := url.Values{}
	q.Set("x", strconv.Itoa(*x))
	q.Set("y", strconv.Itoa(*y))
	q.Set("direction", strconv.Itoa(*dir))
	printGet(*baseURL, "/v1/hints?"+q.Encode())
}

func printGet(baseURL, path string) {
	status, body, err := fetch(baseURL, path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
	if status/100 != 2 {
		os.Exit(1)
	}
}

// fetch returns the response body, indented when it is JSON.
func fetch(baseURL, path string) (int, []byte, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	resp, err := httpClient.Get(u)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	var out bytes.Buffer
	if json.Valid(b) && json.Indent(&out, b, "", "  ") == nil {
		return resp.StatusCode, out.Bytes(), nil
	}
	return resp.StatusCode, bytes.TrimSpace(b), nil
}
