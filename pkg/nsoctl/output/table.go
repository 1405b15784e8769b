package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nso-bridge/nsoctl/pkg/nso/coral"
)

func WriteFriendTable(w io.Writer, friends []coral.Friend) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tNSA_ID\tSTATE\tGAME\tFAVORITE")
	for _, f := range friends {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Name, f.NSAID, presenceState(f.Presence), dash(f.Presence.Game.Name), yesNo(f.IsFavoriteFriend))
	}
	_ = tw.Flush()
}

func WriteFriendTableWide(w io.Writer, friends []coral.Friend) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tNSA_ID\tSTATE\tGAME\tUPDATED\tFRIENDS_SINCE\tFAVORITE\tSERVICE_USER")
	for _, f := range friends {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Name, f.NSAID, presenceState(f.Presence), dash(f.Presence.Game.Name),
			formatEpoch(f.Presence.UpdatedAt), formatEpoch(f.FriendCreatedAt),
			yesNo(f.IsFavoriteFriend), yesNo(f.IsServiceUser))
	}
	_ = tw.Flush()
}

func WriteSelfTable(w io.Writer, self coral.Self) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tNSA_ID\tSTATE\tGAME")
	_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", self.ID, self.Name, self.NSAID, presenceState(self.Presence), dash(self.Presence.Game.Name))
	_ = tw.Flush()
}

// Field is one row of a key/value table.
type Field struct {
	Name  string
	Value string
}

func WriteFields(w io.Writer, fields []Field) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	for _, f := range fields {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", f.Name, dash(f.Value))
	}
	_ = tw.Flush()
}

func presenceState(p coral.Presence) string {
	if p.State == "" {
		return "UNKNOWN"
	}
	return p.State
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatEpoch(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return FormatTime(time.Unix(sec, 0))
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
