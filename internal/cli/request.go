package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/mediacorr/internal/mq"
)

// NewRequestCmd создаёт команду публикации запроса pipeline.requested.
// Запрос выполняет процесс serve (нужен rabbitmq.url).
func NewRequestCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	var from, to, by string

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Ask a serve process to run the pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()

			// Диапазон проверяется и здесь, и у потребителя.
			if _, err := env.Pipeline().Slice(from, to); err != nil {
				return err
			}
			if env.Config.RabbitMQ.URL == "" {
				return fmt.Errorf("rabbitmq: %w (set rabbitmq.url or RABBITMQ_URL)", ErrNotConfigured)
			}

			conn, err := mq.NewConnection(env.Config.RabbitMQ.URL, env.Logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx := cmd.Context()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				return err
			}

			req := mq.RunRequestPayload{From: from, To: to, RequestedBy: by}
			id, err := mq.NewPublisher(conn, env.Logger).PublishRunRequest(ctx, req)
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(map[string]any{"message_id": id, "request": req})
				return nil
			}
			out.Success(fmt.Sprintf("Run requested (message %s)", id))
			return nil
		},
	}

	requestedBy := os.Getenv("USER")
	cmd.Flags().StringVar(&from, "from", "", "Start from this job (inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "Stop after this job (inclusive)")
	cmd.Flags().StringVar(&by, "requested-by", requestedBy, "Requester recorded in the message")

	return cmd
}
