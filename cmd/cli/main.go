package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	c := &client{base: strings.TrimRight(api, "/"), http: &http.Client{Timeout: 2 * time.Minute}}

	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label)
		s, _ := reader.ReadString('\n')
		return strings.TrimSpace(s)
	}

	for {
		fmt.Println()
		fmt.Println("1) list  2) add  3) edit  4) delete  5) ping now  6) stats  q) quit")
		switch prompt("> ") {
		case "1":
			c.show("/api/get-urls", nil)
		case "2":
			name := prompt("Name: ")
			c.show("/api/url", url.Values{"action": {"add"}, "name": {name}, "url": {withScheme(prompt("URL: "))}})
		case "3":
			name := prompt("Name: ")
			c.show("/api/url", url.Values{"action": {"edit"}, "name": {name}, "url": {withScheme(prompt("New URL: "))}})
		case "4":
			c.show("/api/url", url.Values{"action": {"delete"}, "name": {prompt("Name: ")}})
		case "5":
			c.show("/api/ping", nil)
		case "6":
			q := url.Values{}
			if u := prompt("URL filter (empty for all): "); u != "" {
				q.Set("url", u)
			}
			c.show("/api/stats", q)
		case "q", "quit", "":
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

type client struct {
	base string
	http *http.Client
}

// show performs a GET and pretty-prints the JSON body.
func (c *client) show(path string, q url.Values) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	resp, err := c.http.Get(u)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		fmt.Printf("%s\n%s\n", resp.Status, body)
		return
	}
	pretty, _ := json.MarshalIndent(v, "", "  ")
	if resp.StatusCode >= 300 {
		fmt.Println("API returned status:", resp.Status)
	}
	fmt.Println(string(pretty))
}

func withScheme(raw string) string {
	if raw != "" && !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}
