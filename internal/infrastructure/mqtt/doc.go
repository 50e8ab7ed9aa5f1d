// Package mqtt provides the broker connection used by the PrusaLink bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect after a lost connection
//   - Last Will and Testament registration before the first connect
//   - Retained publishing with QoS validation
//   - Connection state callbacks for health reporting
//
// # Architecture
//
// The bridge only publishes. Home automation systems subscribe to the
// configured topics and read the retained values.
//
//	PrusaLink (HTTP) → Bridge → MQTT Broker → Subscribers
//
// # Security Considerations
//
//   - Set mqtt_broker.tls for brokers outside the local network
//   - Credentials are optional; anonymous access suits a local broker only
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT())
//	if err := client.SetWill(topic, will, 1, true); err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx, host, port); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Publish("prusa/printer/status", []byte("PRINTING"), 1, true)
package mqtt
