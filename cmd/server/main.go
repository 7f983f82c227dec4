package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"battlecore/internal/api"
	"battlecore/internal/config"
	"battlecore/internal/datastore"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables only")
	}

	log.Println("================================")
	log.Println(" BATTLE ENGINE")
	log.Println("================================")

	appConfig := config.Load()
	serverCfg := appConfig.Server

	log.Printf("config: battle type %s, %d max battles", appConfig.Battle.BattleType, serverCfg.MaxBattles)
	log.Printf("resource limits: %d creatures/battle, %d log entries, dispatch depth %d",
		appConfig.Limits.MaxCreaturesPerBattle, appConfig.Limits.MaxEventLogEntries, appConfig.Limits.MaxDispatchDepth)

	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.ListenAddr = serverCfg.DebugListenAddr
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("debug server disabled: %v", err)
		}
	}

	// Static game data (species/moves/items/abilities/conditions) is
	// loaded by the host before wiring a DataStore; populating one is
	// out of scope here, so an empty store is used and the host is
	// expected to replace it with a populated datastore.Memory (or its
	// own DataStore implementation) before creating real battles.
	data := datastore.NewMemory()

	server := api.NewServer(data)

	port := strconv.Itoa(serverCfg.Port)
	go func() {
		addr := ":" + port
		log.Printf("api server on http://localhost%s", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("server ready, press ctrl+c to stop")
	<-quit

	log.Println("shutting down...")
	server.Stop()
	log.Println("goodbye")
}
