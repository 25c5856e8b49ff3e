package clients

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/substake/substake/internal/domain"
	"github.com/substake/substake/pkg/retrier"
)

// Subtensor wraps the raw RPC boundary with typed accessors. Loosely-typed
// chain payloads are decoded exactly once here and never travel deeper into
// planning or execution logic.
type Subtensor struct {
	rpc     RPC
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewSubtensor creates the typed chain facade. Read-side queries retry with
// backoff; submissions never do.
func NewSubtensor(rpc RPC, logger *zap.Logger) *Subtensor {
	return &Subtensor{
		rpc:     rpc,
		retrier: retrier.New(retrier.WithMaxRetries(3)),
		logger:  logger,
	}
}

// Submit broadcasts a signed call. Submissions pass straight through to the
// transport: no retries, the outcome of a failed write is unknown.
func (s *Subtensor) Submit(ctx context.Context, call Call, key SigningKey, opts SubmitOptions) (Receipt, error) {
	return s.rpc.Submit(ctx, call, key, opts)
}

type rawPool struct {
	Netuid   int   `json:"netuid"`
	TaoIn    int64 `json:"tao_in"`
	AlphaIn  int64 `json:"alpha_in"`
	AlphaOut int64 `json:"alpha_out"`
}

type rawStakeInfo struct {
	Hotkey       string `json:"hotkey"`
	Coldkey      string `json:"coldkey"`
	Netuid       int    `json:"netuid"`
	Stake        int64  `json:"stake"`
	IsRegistered bool   `json:"is_registered"`
}

type rawAccount struct {
	Data struct {
		Free int64 `json:"free"`
	} `json:"data"`
}

// reshape round-trips a decoded boundary value through JSON into a typed record.
func reshape(value any, out any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshal boundary value")
	}
	return errors.Wrap(json.Unmarshal(payload, out), "decode boundary value")
}

func (s *Subtensor) query(ctx context.Context, module, item string, params []any, blockHash string) (any, error) {
	return retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (any, error) {
		return s.rpc.Query(ctx, module, item, params, blockHash)
	})
}

// ChainHead returns the hash of the current chain head.
func (s *Subtensor) ChainHead(ctx context.Context) (string, error) {
	return retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (string, error) {
		return s.rpc.ChainHead(ctx)
	})
}

// AllPools fetches a consistent snapshot of every subnet's AMM state at the
// given block.
func (s *Subtensor) AllPools(ctx context.Context, blockHash string) (map[int]domain.SubnetPool, error) {
	value, err := s.query(ctx, "SubnetInfoRuntimeApi", "get_all_dynamic_info", nil, blockHash)
	if err != nil {
		return nil, errors.Wrap(err, "fetch subnet pools")
	}

	var raws []rawPool
	if err := reshape(value, &raws); err != nil {
		return nil, err
	}

	pools := make(map[int]domain.SubnetPool, len(raws))
	for _, r := range raws {
		pools[r.Netuid] = domain.NewSubnetPool(
			r.Netuid,
			domain.NewBalance(r.TaoIn),
			domain.NewBalance(r.AlphaIn),
			domain.NewBalance(r.AlphaOut),
		)
	}
	return pools, nil
}

// StakesForColdkey fetches every stake position of the coldkey in one batched
// read at the given block.
func (s *Subtensor) StakesForColdkey(ctx context.Context, coldkey, blockHash string) ([]domain.StakeInfo, error) {
	value, err := s.query(ctx, "StakeInfoRuntimeApi", "get_stake_info_for_coldkey", []any{coldkey}, blockHash)
	if err != nil {
		return nil, errors.Wrap(err, "fetch stake info")
	}

	var raws []rawStakeInfo
	if err := reshape(value, &raws); err != nil {
		return nil, err
	}

	infos := make([]domain.StakeInfo, 0, len(raws))
	for _, r := range raws {
		infos = append(infos, domain.StakeInfo{
			Hotkey:       r.Hotkey,
			Coldkey:      r.Coldkey,
			Netuid:       r.Netuid,
			Stake:        domain.FromRao(r.Stake, r.Netuid),
			IsRegistered: r.IsRegistered,
		})
	}
	return infos, nil
}

// FreeBalance fetches the coldkey's free base-asset balance at the given block.
func (s *Subtensor) FreeBalance(ctx context.Context, coldkey, blockHash string) (domain.Balance, error) {
	value, err := s.query(ctx, "System", "Account", []any{coldkey}, blockHash)
	if err != nil {
		return domain.Balance{}, errors.Wrap(err, "fetch account balance")
	}

	var raw rawAccount
	if err := reshape(value, &raw); err != nil {
		return domain.Balance{}, err
	}
	return domain.FromRao(raw.Data.Free, domain.RootNetuid), nil
}

// FeeRequest identifies the prospective stake movement whose marginal fee is
// being estimated.
type FeeRequest struct {
	OriginHotkey       string
	OriginNetuid       int
	OriginColdkey      string
	DestinationHotkey  string
	DestinationNetuid  int
	DestinationColdkey string
	Amount             domain.Balance
}

// StakeFee queries the chain for the marginal fee of the prospective call.
func (s *Subtensor) StakeFee(ctx context.Context, req FeeRequest) (domain.Balance, error) {
	params := []any{
		req.OriginHotkey, req.OriginNetuid, req.OriginColdkey,
		req.DestinationHotkey, req.DestinationNetuid, req.DestinationColdkey,
		req.Amount.Rao,
	}
	value, err := s.query(ctx, "StakeInfoRuntimeApi", "get_stake_fee", params, "")
	if err != nil {
		return domain.Balance{}, errors.Wrap(err, "fetch stake fee")
	}

	var fee int64
	if err := reshape(value, &fee); err != nil {
		return domain.Balance{}, err
	}
	return domain.FromRao(fee, domain.RootNetuid), nil
}

// StakeForPair fetches the current stake of one (hotkey, netuid) pair.
func (s *Subtensor) StakeForPair(ctx context.Context, coldkey, hotkey string, netuid int, blockHash string) (domain.Balance, error) {
	infos, err := s.StakesForColdkey(ctx, coldkey, blockHash)
	if err != nil {
		return domain.Balance{}, err
	}
	for _, info := range infos {
		if info.Hotkey == hotkey && info.Netuid == netuid {
			return info.Stake, nil
		}
	}
	return domain.FromRao(0, netuid), nil
}

// TxRateLimit returns the network's per-account transaction rate limit in
// blocks. Zero means unlimited.
func (s *Subtensor) TxRateLimit(ctx context.Context) (int64, error) {
	value, err := s.query(ctx, "SubtensorModule", "TxRateLimit", nil, "")
	if err != nil {
		return 0, errors.Wrap(err, "fetch tx rate limit")
	}

	var blocks int64
	if err := reshape(value, &blocks); err != nil {
		return 0, err
	}
	return blocks, nil
}

// ExistentialDeposit returns the minimum balance an account must retain on the
// base asset ledger.
func (s *Subtensor) ExistentialDeposit(ctx context.Context) (domain.Balance, error) {
	value, err := s.rpc.GetConstant(ctx, "Balances", "ExistentialDeposit")
	if err != nil {
		return domain.Balance{}, errors.Wrap(err, "fetch existential deposit")
	}

	var rao int64
	if err := reshape(value, &rao); err != nil {
		return domain.Balance{}, err
	}
	return domain.FromRao(rao, domain.RootNetuid), nil
}
