package gateway

import (
	binance "github.com/adshao/go-binance/v2"
)

// StreamService is the websocket surface of the exchange the live gateway
// depends on. Tests substitute a scripted implementation.
type StreamService interface {
	WsKlineServe(symbol string, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (doneC, stopC chan struct{}, err error)
	WsUserDataServe(listenKey string, handler binance.WsUserDataHandler, errHandler binance.ErrHandler) (doneC, stopC chan struct{}, err error)
}

// binanceStreamService delegates to the package-level websocket functions.
type binanceStreamService struct{}

func (binanceStreamService) WsKlineServe(symbol string, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsKlineServe(symbol, interval, handler, errHandler)
}

func (binanceStreamService) WsUserDataServe(listenKey string, handler binance.WsUserDataHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsUserDataServe(listenKey, handler, errHandler)
}

// Verify binanceStreamService implements the StreamService interface.
var _ StreamService = binanceStreamService{}
