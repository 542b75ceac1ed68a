package eth

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

func GetEthClient(log *logrus.Entry, rpcUrl string) (client *ethclient.Client, err error) {
	client, err = ethclient.Dial(rpcUrl)
	if err != nil {
		log.WithError(err).WithField("url", rpcUrl).Error("Cannot get ETH client")
		return
	}

	return
}

// Downloads the runtime bytecode deployed at the address, latest block
func GetDeployedCode(ctx context.Context, client *ethclient.Client, address string) (code []byte, err error) {
	if !common.IsHexAddress(address) {
		err = fmt.Errorf("not a hex address: %s", address)
		return
	}
	return client.CodeAt(ctx, common.HexToAddress(address), nil)
}

// EIP-55 mixed case form of the address
func ChecksumAddress(address string) (out string, err error) {
	if !common.IsHexAddress(address) {
		err = fmt.Errorf("not a hex address: %s", address)
		return
	}
	return common.HexToAddress(address).Hex(), nil
}

func Keccak256Hex(data []byte) string {
	return hex.EncodeToString(crypto.Keccak256(data))
}

// Bytecode hex arrives in both 0x-prefixed and bare forms
func NormalizeBytecode(code string) string {
	return strings.ToLower(strings.TrimPrefix(code, "0x"))
}

func DecodeBytecode(code string) ([]byte, error) {
	return hex.DecodeString(NormalizeBytecode(code))
}
