package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/knoweave/knoweave/internal/db"
	"github.com/knoweave/knoweave/internal/queue"
	"github.com/knoweave/knoweave/internal/util"
	"github.com/knoweave/knoweave/pkg/graph"
	"github.com/knoweave/knoweave/pkg/leaselock"
	"github.com/knoweave/knoweave/pkg/logger"
	"github.com/knoweave/knoweave/pkg/logger/console"
	neo4jstore "github.com/knoweave/knoweave/pkg/store/neo4j"
	pgxstore "github.com/knoweave/knoweave/pkg/store/pgx"
)

type queuedMessage struct {
	msg       amqp.Delivery
	queueName string
}

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Postgres
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}
	pgConn, err := db.Connect(ctx)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	// Neo4j mirror, optional: without NEO4J_URI the knowledge store still
	// works, only path and raw queries are unavailable.
	neoClient, err := neo4jstore.NewFromEnv(ctx)
	if err != nil {
		logger.Fatal("Unable to connect to Neo4j", "err", err)
	}
	var mirror *neo4jstore.GraphMirrorStore
	var mirrorWriter *neo4jstore.Writer
	var storeOpts []pgxstore.KnowledgeDBStoreOption
	if neoClient != nil {
		neoClient.EnsureSchema(ctx)
		defer neoClient.Close(context.Background())

		mirror = neo4jstore.NewGraphMirrorStore(neoClient)
		mirrorWriter = neo4jstore.NewWriter(mirror)
		defer mirrorWriter.Close()
		storeOpts = append(storeOpts, pgxstore.WithMirrorQueue(mirrorWriter))
	} else {
		logger.Warn("NEO4J_URI not set, graph mirror disabled")
	}

	knowledgeStore := pgxstore.NewKnowledgeDBStore(pgConn, storeOpts...)
	chunkSource := pgxstore.NewChunkSource(pgConn)

	graphClient, err := graph.NewClient(graph.NewClientParams{
		Store:    knowledgeStore,
		Source:   chunkSource,
		Strategy: graph.Strategy(util.GetEnvString("EXTRACTION_STRATEGY", string(graph.StrategyHybrid))),
	})
	if err != nil {
		logger.Fatal("Could not create graph client", "err", err)
	}

	handler := &queue.Handler{
		Graph:          graphClient,
		Store:          knowledgeStore,
		Mirror:         mirror,
		Locks:          leaselock.New(pgConn),
		ProcessTimeout: time.Duration(util.GetEnvNumeric("PROCESS_TIMEOUT_SECONDS", 600)) * time.Second,
	}

	// RabbitMQ
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// After each processed document, schedule a mirror rebuild for its
	// owner so dropped mirror writes get repaired.
	if mirror != nil {
		handler.ScheduleReconcile = func(ownerID int64) error {
			body, err := json.Marshal(queue.ReconcileMsg{OwnerID: ownerID})
			if err != nil {
				return err
			}
			return queue.PublishFIFO(ch, queue.ReconcileQueue, body)
		}
	}

	logger.Info("Listening for messages")

	// One consumer channel shared by all queues; prefetch matches the
	// number of processor goroutines so each has at most one message in
	// flight.
	parallelism := int(util.GetEnvNumeric("WORKER_PARALLELISM", 4))
	if parallelism < 1 {
		parallelism = 1
	}

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(parallelism, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	var workers errgroup.Group
	for i := 0; i < parallelism; i++ {
		workers.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case qm := <-messageChan:
					processMessage(ctx, handler, consumerCh, qm)
				}
			}
		})
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
	workers.Wait()
}

func processMessage(ctx context.Context, handler *queue.Handler, ch *amqp.Channel, qm queuedMessage) {
	startTime := time.Now()
	logger.Info("Received message", "queue", qm.queueName)

	var processingErr error
	switch qm.queueName {
	case queue.KnowledgeQueue:
		processingErr = handler.ProcessKnowledgeMessage(ctx, string(qm.msg.Body))
	case queue.ReconcileQueue:
		processingErr = handler.ProcessReconcileMessage(ctx, string(qm.msg.Body))
	}

	// On error send to retry or dead-letter, otherwise ack
	if processingErr != nil {
		logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
		handleProcessingError(ch, qm.msg, qm.queueName)
	} else {
		if err := qm.msg.Ack(false); err != nil {
			logger.Error("Failed to ack message", "err", err)
		}
		logger.Info("Message processed successfully", "queue", qm.queueName)
	}

	processingDuration := time.Since(startTime)
	hours := int(processingDuration.Hours())
	minutes := int(processingDuration.Minutes()) % 60
	seconds := int(processingDuration.Seconds()) % 60
	logger.Info(
		"Processing time",
		"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
	)
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	// After 10 attempts the message goes to the dead-letter queue
	if retries >= 10 {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = retries + 1

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
