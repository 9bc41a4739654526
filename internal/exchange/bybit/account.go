package bybit

import (
	"context"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
)

// AccountType represents different account types in Bybit
type AccountType string

const (
	AccountTypeUnified AccountType = "UNIFIED"
	AccountTypeSpot    AccountType = "SPOT"
)

// Balance represents a coin balance in the account
type Balance struct {
	Coin          string
	WalletBalance float64
	Available     float64
	Locked        float64
}

// AccountInfo is the wallet of one account type.
type AccountInfo struct {
	AccountType           string
	TotalEquity           float64
	TotalWalletBalance    float64
	TotalAvailableBalance float64
	Coins                 []Balance
}

// GetAccountBalance retrieves account balance information
func (c *Client) GetAccountBalance(ctx context.Context, accountType AccountType, coins ...string) (*AccountInfo, error) {
	params := map[string]interface{}{"accountType": string(accountType)}
	if len(coins) == 1 {
		params["coin"] = coins[0]
	}

	var result walletResult
	err := c.do(ctx, "GetAccountBalance", func(ctx context.Context) (*bybit_api.ServerResponse, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	}, &result)
	if err != nil {
		return nil, err
	}
	return parseWallet(result)
}

func parseWallet(result walletResult) (*AccountInfo, error) {
	if len(result.List) == 0 {
		return nil, boterrors.NewBotError(boterrors.ErrorCategoryExchange, "bybit", "GetAccountBalance",
			"no account data found")
	}

	acct := result.List[0]
	info := &AccountInfo{
		AccountType:           acct.AccountType,
		TotalEquity:           parseFloat64(acct.TotalEquity),
		TotalWalletBalance:    parseFloat64(acct.TotalWalletBalance),
		TotalAvailableBalance: parseFloat64(acct.TotalAvailableBalance),
		Coins:                 make([]Balance, 0, len(acct.Coin)),
	}
	for _, coin := range acct.Coin {
		wallet := parseFloat64(coin.WalletBalance)
		locked := parseFloat64(coin.Locked) + parseFloat64(coin.TotalOrderIM) + parseFloat64(coin.TotalPositionIM)
		available := wallet - locked
		if available < 0 {
			available = 0
		}
		info.Coins = append(info.Coins, Balance{
			Coin:          coin.Coin,
			WalletBalance: wallet,
			Available:     available,
			Locked:        locked,
		})
	}
	return info, nil
}

// GetCoinBalance returns the balance of one coin. A coin the account never
// held has a zero balance.
func (c *Client) GetCoinBalance(ctx context.Context, accountType AccountType, coin string) (*Balance, error) {
	info, err := c.GetAccountBalance(ctx, accountType, coin)
	if err != nil {
		return nil, err
	}
	for _, b := range info.Coins {
		if b.Coin == coin {
			b := b
			return &b, nil
		}
	}
	return &Balance{Coin: coin}, nil
}

// GetAccountInfo doubles as the credential check: it is a signed request.
func (c *Client) GetAccountInfo(ctx context.Context) (string, error) {
	var result accountInfoResult
	err := c.do(ctx, "GetAccountInfo", func(ctx context.Context) (*bybit_api.ServerResponse, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(map[string]interface{}{}).GetAccountInfo(ctx)
	}, &result)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("unified margin status %d, margin mode %s", result.UnifiedMarginStatus, result.MarginMode), nil
}
