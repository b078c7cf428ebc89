package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/audit-search/cmd/cli/config"
	"github.com/crucial707/audit-search/cmd/cli/output"
	"github.com/crucial707/audit-search/internal/models"
	"github.com/crucial707/audit-search/internal/search"
)

var client = &http.Client{Timeout: 60 * time.Second}

// page mirrors the API's audit listing response.
type page struct {
	Items    []entry          `json:"items"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
	Strategy string           `json:"strategy"`
	Messages []search.Message `json:"messages"`
}

// entry is an audit entry as served by the API; action arrives as its name.
type entry struct {
	ID            int64              `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	Actor         *models.Actor      `json:"actor,omitempty"`
	ObjectRepr    string             `json:"object_repr"`
	Changes       json.RawMessage    `json:"changes,omitempty"`
	ContentTypeID int                `json:"content_type_id"`
	ObjectID      int64              `json:"object_id"`
	CID           string             `json:"cid,omitempty"`
	Action        string             `json:"action"`
	Similarity    *models.Similarity `json:"similarity,omitempty"`
}

// ==========================
// Init Audit
// ==========================
func InitAudit(rootCmd *cobra.Command) {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Search the audit log through the API",
	}

	auditCmd.AddCommand(
		listAuditCmd(),
		getAuditCmd(),
	)

	rootCmd.AddCommand(auditCmd)
}

// ==========================
// LIST
// ==========================
func listAuditCmd() *cobra.Command {
	var (
		q, action, cid string
		contentType    int
		limit, offset  int
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, optionally searched and filtered",
		Example: `  auditsearch audit list --q "Person:42"
  auditsearch audit list --q "jane smith" --action update`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if q != "" {
				params.Set("q", q)
			}
			if action != "" {
				params.Set("action", action)
			}
			if contentType > 0 {
				params.Set("content_type", strconv.Itoa(contentType))
			}
			if cid != "" {
				params.Set("cid", cid)
			}
			params.Set("limit", strconv.Itoa(limit))
			params.Set("offset", strconv.Itoa(offset))

			var p page
			if err := getJSON("/audit?"+params.Encode(), &p); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return output.RenderJSON(w, p)
			}
			for _, m := range p.Messages {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", upper(m.Level), m.Text)
			}
			renderEntries(w, p.Items)
			fmt.Fprintf(w, "%d of %d (strategy: %s)\n", len(p.Items), p.Total, p.Strategy)
			return nil
		},
	}

	cmd.Flags().StringVar(&q, "q", "", "search term (ModelName:ID or free text)")
	cmd.Flags().StringVar(&action, "action", "", "create, update, delete or access")
	cmd.Flags().IntVar(&contentType, "content-type", 0, "content type id")
	cmd.Flags().StringVar(&cid, "cid", "", "correlation id")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size (max 200)")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")

	return cmd
}

// ==========================
// GET
// ==========================
func getAuditCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one audit entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			var e entry
			if err := getJSON("/audit/"+args[0], &e); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				return output.RenderJSON(w, e)
			}
			renderEntries(w, []entry{e})
			if len(e.Changes) > 0 {
				fmt.Fprintf(w, "changes: %s\n", e.Changes)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func renderEntries(w io.Writer, items []entry) {
	rows := make([][]interface{}, 0, len(items))
	for _, e := range items {
		actor := "system"
		if e.Actor != nil {
			actor = e.Actor.Login
		}
		rows = append(rows, []interface{}{e.ID, e.Timestamp.Local().Format(time.DateTime), e.Action, e.ObjectRepr, actor})
	}
	output.RenderTable(w, []string{"ID", "Timestamp", "Action", "Object", "Actor"}, rows)
}

func getJSON(path string, out any) error {
	token, err := config.ReadToken()
	if err != nil {
		return err
	}

	req, err := http.NewRequest("GET", config.APIURL()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func upper(l search.Level) string {
	switch l {
	case search.LevelWarning:
		return "WARNING"
	case search.LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}
