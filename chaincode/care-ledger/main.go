package main

import (
	"log"
	"net/http"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/medrex/care-ledger/chaincode/care-ledger/careledger"
	"github.com/medrex/care-ledger/pkg/config"
	"github.com/medrex/care-ledger/pkg/logger"
	"github.com/medrex/care-ledger/pkg/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Panicf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.WithComponent("main").Info("Starting care ledger chaincode")

	var monitor *monitoring.MonitoringMiddleware
	if cfg.Monitoring.Enabled {
		monitor = setupMonitoring(cfg, appLogger)
	}

	contract := careledger.NewSmartContract(cfg, appLogger, monitor)
	contract.Name = "careledger"

	careLedgerChaincode, err := contractapi.NewChaincode(contract)
	if err != nil {
		log.Panicf("Error creating CareLedger chaincode: %v", err)
	}

	if cfg.Chaincode.ServerAddress == "" {
		if err := careLedgerChaincode.Start(); err != nil {
			log.Panicf("Error starting CareLedger chaincode: %v", err)
		}
		return
	}

	server := &shim.ChaincodeServer{
		CCID:     cfg.Chaincode.ID,
		Address:  cfg.Chaincode.ServerAddress,
		CC:       careLedgerChaincode,
		TLSProps: shim.TLSProperties{Disabled: true},
	}

	appLogger.WithComponent("main").WithField("address", cfg.Chaincode.ServerAddress).
		Info("Starting CareLedger chaincode server")
	if err := server.Start(); err != nil {
		log.Panicf("Error starting CareLedger chaincode server: %v", err)
	}
}

// setupMonitoring registers metrics, optional tracing, and serves the
// metrics and health endpoints
func setupMonitoring(cfg *config.Config, appLogger *logger.Logger) *monitoring.MonitoringMiddleware {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := monitoring.NewMetricsCollector(reg)
	if err != nil {
		log.Panicf("Failed to register metrics: %v", err)
	}

	var tracing *monitoring.TracingManager
	if cfg.Monitoring.TracingEnabled {
		tracing, err = monitoring.NewTracingManager(&monitoring.TracingConfig{
			ServiceName:    cfg.Monitoring.ServiceName,
			ServiceVersion: serviceVersion,
			SamplingRate:   cfg.Monitoring.SamplingRate,
		})
		if err != nil {
			log.Panicf("Failed to initialize tracing: %v", err)
		}
	}

	health := monitoring.NewHealthManager(cfg.Monitoring.ServiceName, serviceVersion)
	health.RegisterChecker("metrics", monitoring.NewMetricsHealthChecker(metrics))

	mux := http.NewServeMux()
	mux.Handle(cfg.Monitoring.MetricsPath, metrics.Handler())
	mux.HandleFunc("/health", health.HTTPHandler())

	go func() {
		appLogger.WithComponent("monitoring").WithField("address", cfg.Monitoring.MetricsAddress).
			Info("Serving metrics")
		if err := http.ListenAndServe(cfg.Monitoring.MetricsAddress, mux); err != nil {
			appLogger.WithComponent("monitoring").WithError(err).Error("Metrics server stopped")
		}
	}()

	return monitoring.NewMonitoringMiddleware(metrics, tracing)
}
