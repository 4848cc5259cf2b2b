package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

func main() {
	host := flag.String("host", "", "host/IP to bind")
	port := flag.Int("port", 8080, "port to bind")
	timeLimit := flag.Int("time", DefaultTimeLimit, "match time limit in seconds")
	questions := flag.String("questions", "questions.db", "question bank SQLite file (empty = built-in bank)")
	showQR := flag.Bool("qr", false, "print a QR code of the join URL at startup")
	flag.Parse()

	if *timeLimit <= 0 {
		log.Fatalf("invalid time limit: %d", *timeLimit)
	}

	deck, err := loadDeck(*questions)
	if err != nil {
		log.Fatalf("loading question bank: %v", err)
	}
	log.Printf("question bank loaded: %d questions", deck.Remaining())

	game := NewGame(time.Duration(*timeLimit)*time.Second, deck)
	go game.Run()

	hub := NewHub(game)
	go hub.Run()

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	server := &http.Server{Addr: addr, Handler: SetupRoutes(hub)}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on %s (time limit %ds)", addr, *timeLimit)
		if *showQR {
			printJoinQR(*host, *port)
		}
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	game.Stop()
	server.Close()
}

// loadDeck builds the match deck from the SQLite bank, or from the
// built-in questions when no path is given.
func loadDeck(path string) (*QuestionDeck, error) {
	if path == "" {
		return NewDeck(builtinQuestions), nil
	}
	store, err := OpenQuestionStore(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	qs, err := store.Load()
	if err != nil {
		return nil, err
	}
	return NewDeck(qs), nil
}

// printJoinQR renders the join URL as a terminal QR code, for pointing
// phones and tablets at the server.
func printJoinQR(host string, port int) {
	if host == "" {
		host = "localhost"
	}
	joinURL := fmt.Sprintf("ws://%s/ws", net.JoinHostPort(host, strconv.Itoa(port)))
	qr, err := qrcode.New(joinURL, qrcode.Medium)
	if err != nil {
		log.Printf("qr code error: %v", err)
		return
	}
	fmt.Println(qr.ToSmallString(false))
	log.Printf("join URL: %s", joinURL)
}
