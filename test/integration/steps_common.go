package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/mitarbeiterportal/portal/pkg/portal"
)

// StepsContext holds state shared between step definitions
type StepsContext struct {
	tc           *TestContext
	response     *http.Response
	responseBody []byte
	authToken    string
	tokens       map[string]string    // email -> session token
	ids          map[string]string    // email or name -> hub key
	marks        map[string]time.Time // label -> instant
	concurrent   []int                // statuses of the last concurrent batch
}

// NewStepsContext creates a new steps context
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{
		tc:     tc,
		tokens: make(map[string]string),
		ids:    make(map[string]string),
		marks:  make(map[string]time.Time),
	}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, s.tc.Reset()
	})

	// Background steps
	sc.Step(`^the portal is running$`, s.thePortalIsRunning)
	sc.Step(`^a user "([^"]*)" with password "([^"]*)" is registered$`, s.aUserIsRegistered)
	sc.Step(`^"([^"]*)" is an administrator$`, s.isAnAdministrator)
	sc.Step(`^"([^"]*)" is no longer an administrator$`, s.isNoLongerAnAdministrator)

	// Authentication steps
	sc.Step(`^I log in as "([^"]*)" with password "([^"]*)"$`, s.iLogInAs)
	sc.Step(`^I am logged in as "([^"]*)" with password "([^"]*)"$`, s.iAmLoggedInAs)
	sc.Step(`^I should receive a session token$`, s.iShouldReceiveASessionToken)

	// Request steps
	sc.Step(`^I send a (GET|POST|PUT|DELETE) request to "([^"]*)"$`, s.iSendRequest)
	sc.Step(`^I send a (GET|POST|PUT|DELETE) request to "([^"]*)" with body:$`, s.iSendRequestWithBody)
	sc.Step(`^I remember the "([^"]*)" of the response as "([^"]*)"$`, s.iRememberTheFieldAs)
	sc.Step(`^I remember the time as "([^"]*)"$`, s.iRememberTheTimeAs)

	// Response steps
	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.theResponseFieldShouldBe)
	sc.Step(`^the response field "([^"]*)" should be null$`, s.theResponseFieldShouldBeNull)
	sc.Step(`^the response should be a list of (\d+) items?$`, s.theResponseShouldBeAListOf)

	// Vault steps
	sc.Step(`^(\d+) concurrent profile updates set "([^"]*)" to distinct values$`, s.concurrentProfileUpdates)
	sc.Step(`^every concurrent update should have status 200 or 409$`, s.everyConcurrentUpdateShouldSucceedOrConflict)
	sc.Step(`^at least one concurrent update should succeed$`, s.atLeastOneConcurrentUpdateShouldSucceed)
	sc.Step(`^"([^"]*)" should have (\d+) open rows? in "([^"]*)"$`, s.shouldHaveOpenRowsIn)
	sc.Step(`^"([^"]*)" should have (\d+) rows? in "([^"]*)"$`, s.shouldHaveRowsIn)
}

// Background steps

func (s *StepsContext) thePortalIsRunning() error {
	return nil
}

func (s *StepsContext) aUserIsRegistered(email, password string) error {
	body := fmt.Sprintf(`{"email":%q,"password":%q,"firstName":"Test","lastName":"User"}`, email, password)
	if err := s.do("POST", "/api/register", body); err != nil {
		return err
	}
	if s.response.StatusCode != http.StatusCreated {
		return fmt.Errorf("registration of %s failed: %d %s", email, s.response.StatusCode, s.responseBody)
	}
	return s.iRememberTheFieldAs("hk_user", email)
}

func (s *StepsContext) isAnAdministrator(email string) error {
	_, err := s.tc.Services.Accounts.SetAdmin(context.Background(), email, true)
	return err
}

func (s *StepsContext) isNoLongerAnAdministrator(email string) error {
	_, err := s.tc.Services.Accounts.SetAdmin(context.Background(), email, false)
	return err
}

// Authentication steps

func (s *StepsContext) iLogInAs(email, password string) error {
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	if err := s.do("POST", "/api/login", body); err != nil {
		return err
	}
	if s.response.StatusCode == http.StatusOK {
		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(s.responseBody, &resp); err != nil {
			return err
		}
		s.tokens[portal.NormalizeEmail(email)] = resp.Token
		s.authToken = resp.Token
	}
	return nil
}

func (s *StepsContext) iAmLoggedInAs(email, password string) error {
	if err := s.iLogInAs(email, password); err != nil {
		return err
	}
	if s.authToken == "" || s.response.StatusCode != http.StatusOK {
		return fmt.Errorf("login as %s failed: %d %s", email, s.response.StatusCode, s.responseBody)
	}
	return nil
}

func (s *StepsContext) iShouldReceiveASessionToken() error {
	if s.response.StatusCode != http.StatusOK {
		return fmt.Errorf("expected status 200, got %d", s.response.StatusCode)
	}
	if strings.Count(s.authToken, ".") != 2 {
		return fmt.Errorf("expected a JWT, got %q", s.authToken)
	}
	return nil
}

// Request steps

var placeholder = regexp.MustCompile(`\{(id|time):([^}]+)\}`)

// expand replaces {id:<name>} with a remembered key and {time:<label>}
// with a remembered instant in RFC 3339.
func (s *StepsContext) expand(text string, escape bool) (string, error) {
	var missing error
	out := placeholder.ReplaceAllStringFunc(text, func(m string) string {
		parts := placeholder.FindStringSubmatch(m)
		switch parts[1] {
		case "id":
			id, ok := s.ids[parts[2]]
			if !ok {
				missing = fmt.Errorf("no id remembered as %q", parts[2])
			}
			return id
		default:
			t, ok := s.marks[parts[2]]
			if !ok {
				missing = fmt.Errorf("no time remembered as %q", parts[2])
			}
			v := t.Format(time.RFC3339Nano)
			if escape {
				v = url.QueryEscape(v)
			}
			return v
		}
	})
	return out, missing
}

func (s *StepsContext) do(method, path, body string) error {
	path, err := s.expand(path, true)
	if err != nil {
		return err
	}
	body, err = s.expand(body, false)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.tc.ServerURL+path, reader)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	s.response, err = s.tc.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	s.responseBody, err = io.ReadAll(s.response.Body)
	_ = s.response.Body.Close()
	return err
}

func (s *StepsContext) iSendRequest(method, path string) error {
	return s.do(method, path, "")
}

func (s *StepsContext) iSendRequestWithBody(method, path string, body *godog.DocString) error {
	return s.do(method, path, body.Content)
}

func (s *StepsContext) iRememberTheFieldAs(field, name string) error {
	v, err := s.field(field)
	if err != nil {
		return err
	}
	id, ok := v.(string)
	if !ok {
		return fmt.Errorf("field %s is %T, not a string", field, v)
	}
	s.ids[name] = id
	return nil
}

func (s *StepsContext) iRememberTheTimeAs(label string) error {
	// Rows written in the same millisecond as the mark would be ambiguous.
	time.Sleep(20 * time.Millisecond)
	s.marks[label] = time.Now().UTC()
	time.Sleep(20 * time.Millisecond)
	return nil
}

// Response steps

func (s *StepsContext) theResponseStatusShouldBe(code int) error {
	if s.response.StatusCode != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, s.response.StatusCode, string(s.responseBody))
	}
	return nil
}

// field walks a dotted path through the JSON response.
func (s *StepsContext) field(path string) (any, error) {
	var doc any
	if err := json.Unmarshal(s.responseBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %s not found in %s", path, s.responseBody)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("bad index %q in %s", part, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %s of %s", part, path)
		}
	}
	return cur, nil
}

func (s *StepsContext) theResponseFieldShouldBe(path, expected string) error {
	expected, err := s.expand(expected, false)
	if err != nil {
		return err
	}
	v, err := s.field(path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", path, expected, got)
	}
	return nil
}

func (s *StepsContext) theResponseFieldShouldBeNull(path string) error {
	v, err := s.field(path)
	if err != nil {
		return err
	}
	if v != nil {
		return fmt.Errorf("expected %s to be null, got %v", path, v)
	}
	return nil
}

func (s *StepsContext) theResponseShouldBeAListOf(n int) error {
	var items []any
	if err := json.Unmarshal(s.responseBody, &items); err != nil {
		return fmt.Errorf("response is not a list: %s", s.responseBody)
	}
	if len(items) != n {
		return fmt.Errorf("expected %d items, got %d: %s", n, len(items), s.responseBody)
	}
	return nil
}
