package main

import (
	"chat-sync/auth"
	"chat-sync/domain"
	"chat-sync/infrastructure/grpc/client"
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"
)

// fields collects repeated -f key=value flags.
type fields map[string]string

func (f fields) String() string {
	return fmt.Sprint(map[string]string(f))
}

func (f fields) Set(value string) error {
	key, val, found := strings.Cut(value, "=")
	if !found || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	f[key] = val
	return nil
}

func main() {
	payload := fields{}
	addr := flag.String("addr", "localhost:50070", "Address of the chatsync push endpoint")
	secret := flag.String("secret", "", "PUSH_SECRET of the daemon, empty when auth is disabled")
	topic := flag.String("topic", domain.TopicChat, "Push topic (chat or notify)")
	body := flag.String("body", "", "Shortcut for -f message=... (chat) or -f body=... (notify)")
	timeout := flag.Duration("timeout", 5*time.Second, "Call timeout")
	flag.Var(payload, "f", "Payload field key=value, repeatable")
	flag.Parse()

	payload[domain.KeyTopic] = *topic
	if *body != "" {
		key := domain.KeyMessage
		if *topic == domain.TopicNotify {
			key = domain.KeyBody
		}
		payload[key] = *body
	}
	if *topic == domain.TopicChat {
		defaults := map[string]string{
			domain.KeySendingTime: domain.FormatTime(time.Now()),
			domain.KeyVisibility:  "ACTIVE",
			domain.KeyType:        string(domain.KindText),
		}
		for key, value := range defaults {
			if payload[key] == "" {
				payload[key] = value
			}
		}
	}

	token := ""
	if *secret != "" {
		var err error
		if token, err = auth.GenerateToken([]byte(*secret), "pusher", time.Minute); err != nil {
			log.Fatal("Token generation failed: ", err)
		}
	}

	pushClient, err := client.NewPushClient(*addr, token)
	if err != nil {
		log.Fatal(err)
	}
	defer pushClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	outcome, err := pushClient.Deliver(ctx, payload)
	if err != nil {
		log.Fatal("Delivery failed: ", err)
	}
	fmt.Println(outcome)
}
