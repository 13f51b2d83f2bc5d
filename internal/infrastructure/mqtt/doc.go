// Package mqtt provides MQTT client connectivity for fauxswitch.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained switch state publishing
//   - The switch command subscription
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	fauxswitch/switch/{slug}/state   retained JSON, published after every action
//	fauxswitch/switch/{slug}/set     "on" / "off" commands from other systems
//	fauxswitch/system/status         online/offline, carries the LWT
//
// MQTT is optional. With mqtt.enabled=false the emulator only talks to the
// hub over SSDP and HTTP.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.SwitchState(mqtt.Slug("Porch Light"))
//	client.Publish(topic, []byte(`{"on":true}`), 1, true)
package mqtt
