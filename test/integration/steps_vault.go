package integration

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

func (s *StepsContext) concurrentProfileUpdates(n int, field string) error {
	token := s.authToken
	statuses := make([]int, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{%q:"value-%d"}`, field, i)
			req, err := http.NewRequest("PUT", s.tc.ServerURL+"/api/profile", strings.NewReader(body))
			if err != nil {
				errs[i] = err
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := s.tc.HTTPClient.Do(req)
			if err != nil {
				errs[i] = err
				return
			}
			_ = resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	s.concurrent = statuses
	return nil
}

func (s *StepsContext) everyConcurrentUpdateShouldSucceedOrConflict() error {
	for i, code := range s.concurrent {
		if code != http.StatusOK && code != http.StatusConflict {
			return fmt.Errorf("update %d returned %d", i, code)
		}
	}
	return nil
}

func (s *StepsContext) atLeastOneConcurrentUpdateShouldSucceed() error {
	for _, code := range s.concurrent {
		if code == http.StatusOK {
			return nil
		}
	}
	return fmt.Errorf("no update succeeded: %v", s.concurrent)
}

// ownerColumns maps vault tables to the column naming the owning user.
var ownerColumns = map[string]string{
	"h_user":                   "hk_user",
	"s_user_details":           "hk_user",
	"s_user_login":             "hk_user",
	"l_user_current_project":   "hk_user",
	"l_user_project_timeentry": "hk_user",
}

func (s *StepsContext) countRows(name, table string, openOnly bool) (int, error) {
	column, ok := ownerColumns[table]
	if !ok {
		return 0, fmt.Errorf("unknown table %s", table)
	}
	id, ok := s.ids[name]
	if !ok {
		return 0, fmt.Errorf("no id remembered as %q", name)
	}
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = $1`, table, column)
	if openOnly {
		query += ` AND t_to IS NULL`
	}
	var n int
	if err := s.tc.RawDB.QueryRow(query, id).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *StepsContext) shouldHaveOpenRowsIn(name string, expected int, table string) error {
	n, err := s.countRows(name, table, true)
	if err != nil {
		return err
	}
	if n != expected {
		return fmt.Errorf("expected %d open rows for %s in %s, got %d", expected, name, table, n)
	}
	return nil
}

func (s *StepsContext) shouldHaveRowsIn(name string, expected int, table string) error {
	n, err := s.countRows(name, table, false)
	if err != nil {
		return err
	}
	if n != expected {
		return fmt.Errorf("expected %d rows for %s in %s, got %d", expected, name, table, n)
	}
	return nil
}
