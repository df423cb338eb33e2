package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rexlx/chaps/internal/admin"
	"github.com/rexlx/chaps/internal/dispatch"
	"github.com/rexlx/chaps/internal/model"
	"github.com/rexlx/chaps/internal/registry"
	"github.com/rexlx/chaps/internal/store"
)

func main() {
	// Define flags
	addr := flag.String("addr", "0.0.0.0:8080", "listen address host:port")
	dsn := flag.String("dsn", "user=chaps password=changeme host=localhost dbname=chaps sslmode=disable", "postgres connection string")
	defaultRoom := flag.String("default-room", "Général", "room every new account is auto-joined to")
	logPath := flag.String("log", "thisserver.log", "server log file path")
	firstUse := flag.Bool("firstuse", false, "initialize the server by creating the first account")
	flag.Parse()

	if !validPort(*addr) {
		fmt.Println("invalid listen address:", *addr)
		os.Exit(2)
	}

	// 1. Setup Logging
	file, err := os.OpenFile(*logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		fmt.Println("Error opening log file:", err)
		os.Exit(1)
	}
	defer file.Close()
	logger := log.New(file, "SERVER: ", log.LstdFlags|log.Lshortfile)

	// 2. Connect to Database
	db, err := store.NewPostgresStore(*dsn)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}

	// Ensure Tables Exist
	if err := db.CreateTables(); err != nil {
		logger.Fatal("Failed to create tables:", err)
	}
	logger.Println("Database connected and tables verified.")

	// 3. Handle First Use Flag
	if *firstUse {
		createFirstUser(db, *defaultRoom)
		os.Exit(0)
	}

	// 4. Seed the Server Registry
	reg := registry.New(*addr, *defaultRoom, logger, db)
	if err := reg.AddRoom(*defaultRoom); err != nil {
		logger.Fatal("Failed to seed default room:", err)
	}
	if err := reg.LoadRooms(); err != nil {
		logger.Fatal("Failed to load rooms:", err)
	}

	// 5. Wire the Message Dispatcher
	reg.Handler = dispatch.Serve

	// 6. Start the Accept Loop
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- reg.Run()
	}()
	logger.Printf("listening on %s", *addr)

	// 7. Run the Admin Console
	console := admin.New(reg, os.Stdin, os.Stdout)
	fmt.Println("Admin console")
	fmt.Println("Type 'help' for a list of commands.")
	console.Run()

	if err := <-serverErr; err != nil {
		logger.Println("server exited with error:", err)
		os.Exit(1)
	}
}

// validPort reports whether addr's port component, if present, parses as
// an integer in [0, 65535].
func validPort(addr string) bool {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return true
	}
	portStr := addr[idx+1:]
	if portStr == "" {
		return true
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return false
	}
	return p >= 0 && p <= 65535
}

// createFirstUser bootstraps the first account so there is someone to
// sign in as once the server is up.
func createFirstUser(db store.Store, defaultRoom string) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("--- FIRST USE SETUP ---")

	fmt.Print("Enter Username: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)

	fmt.Print("Enter Password: ")
	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)

	if username == "" || password == "" {
		fmt.Println("Error: Username and Password are required.")
		os.Exit(1)
	}

	u := model.User{
		Name:         username,
		State:        model.StateValid,
		DateCreation: time.Now(),
	}
	if err := u.SetPassword(password); err != nil {
		fmt.Printf("Error hashing password: %v\n", err)
		os.Exit(1)
	}
	if err := db.InsertUser(u); err != nil {
		fmt.Printf("Error storing user: %v\n", err)
		os.Exit(1)
	}
	if err := db.InsertMembership(username, defaultRoom); err != nil {
		fmt.Printf("Error joining default room: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Successfully created account:", username)
	fmt.Println("Setup complete. Restart server without -firstuse flag.")
}
