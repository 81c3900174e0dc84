package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rcliao/branchlog/internal/model"
	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "append [json]",
		Short: "Append an event to the active timeline",
		Long:  "Append an event to the active timeline. The JSON body can be a positional arg or piped via stdin; it may be empty.",
		Run:   runAppend,
	}

	cmd.Flags().StringP("type", "t", "event", "Payload type")

	RootCmd.AddCommand(cmd)
}

type appendView struct {
	statusView
	Record model.Record `json:"record"`
}

func runAppend(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")

	body, err := readBody(cmd, args)
	if err != nil {
		exitErr("read stdin", err)
	}

	s, cfg, logger := openStore()
	defer s.Close()

	rec, sess, err := appendEvent(cmd.Context(), s, cfg.Log, logger, model.PayloadType(typ), body)
	if err != nil {
		exitErr("append", err)
	}
	printJSON(cmd, appendView{statusView: sess.status(), Record: rec})
}

// readBody returns the positional args joined, or stdin when it is piped.
func readBody(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) > 0 {
		return []byte(strings.Join(args, " ")), nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return nil, nil
		}
	}
	return io.ReadAll(in)
}

func appendEvent(ctx context.Context, s store.Store, name string, logger *slog.Logger, typ model.PayloadType, body []byte) (model.Record, *session, error) {
	p, err := model.RawPayload(typ, body)
	if err != nil {
		return model.Record{}, nil, fmt.Errorf("payload: %w", err)
	}
	var rec model.Record
	sess, err := mutate(ctx, s, name, logger, func(sess *session) (string, error) {
		var err error
		rec, err = sess.forest.Append(p)
		return "append " + string(typ), err
	})
	if err != nil {
		return model.Record{}, nil, err
	}
	return rec, sess, nil
}
