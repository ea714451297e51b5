package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/shadda-scores/internal/domain"
	"github.com/shadda-scores/internal/kafka"
)

// submitWords end the current round instead of being parsed as a score
var submitWords = map[string]bool{
	"submit": true,
	"سجل":    true,
	"سجّل":   true,
	"خلصنا":  true,
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "shadda-commands", "Kafka commands topic")
	gameID := flag.String("game", "", "Game ID the transcripts belong to")
	flag.Parse()

	if *gameID == "" {
		log.Fatal("-game is required")
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Shadda voice producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:  %s\n", *brokers)
	fmt.Printf("  Topic:    %s\n", *topic)
	fmt.Printf("  Game:     %s\n", *gameID)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("One transcript per line, e.g. \"محمد مية\". \"submit\" ends the round.")
	fmt.Println()

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Retry.Backoff = 250 * time.Millisecond
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Printf("Reading input: %v", err)
		}
	}()

	var sent, failed int
	for {
		select {
		case <-sigChan:
			fmt.Printf("\n✓ Stopped. Sent: %d, Errors: %d\n", sent, failed)
			return

		case line, ok := <-lines:
			if !ok {
				fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", sent, failed)
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			cmd := domain.GameCommand{GameID: *gameID, Type: domain.CommandUtterance, Transcript: line}
			if submitWords[strings.ToLower(line)] {
				cmd = domain.GameCommand{GameID: *gameID, Type: domain.CommandSubmit}
			}

			msg, err := kafka.CommandMessage(*topic, cmd)
			if err != nil {
				log.Printf("Failed to build message: %v", err)
				failed++
				continue
			}
			partition, offset, err := producer.SendMessage(msg)
			if err != nil {
				log.Printf("Producer error: %v", err)
				failed++
				continue
			}
			sent++
			fmt.Printf("[%s] %s %q -> partition %d offset %d\n",
				time.Now().Format("15:04:05"), cmd.Type, line, partition, offset)
		}
	}
}
