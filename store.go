package vtoken_ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MarketRecord struct {
	VToken    string `gorm:"primaryKey"`
	Wrapper   *VPoolWrapper
	Pool      *SimPool
	UpdatedAt time.Time
}

type AccountRecord struct {
	Id        string `gorm:"primaryKey"`
	Owner     string `gorm:"index"`
	Account   *Account
	UpdatedAt time.Time
}

type ClearingHouseRecord struct {
	Id                        uint `gorm:"primaryKey"`
	VBase                     string
	MinRequiredMargin         decimal.Decimal `gorm:"type:text"`
	FixFee                    decimal.Decimal `gorm:"type:text"`
	LiquidationFeeFractionBps uint32
	InsuranceFundFeeShareBps  uint32
	InsuranceFund             decimal.Decimal `gorm:"type:text"`
	UpdatedAt                 time.Time
}

// SnapshotStore persists a clearing house in a sqlite file.
type SnapshotStore struct {
	db *gorm.DB
}

func OpenSnapshotStore(dbFile string) (*SnapshotStore, error) {
	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ClearingHouseRecord{}, &MarketRecord{}, &AccountRecord{}); err != nil {
		return nil, err
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save writes the whole clearing house in one transaction.
func (s *SnapshotStore) Save(ch *ClearingHouse) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		header := &ClearingHouseRecord{
			Id:                        1,
			VBase:                     ch.constants.VBase.String(),
			MinRequiredMargin:         ch.constants.MinRequiredMargin,
			FixFee:                    ch.liquidation.FixFee,
			LiquidationFeeFractionBps: ch.liquidation.LiquidationFeeFractionBps,
			InsuranceFundFeeShareBps:  ch.liquidation.InsuranceFundFeeShareBps,
			InsuranceFund:             ch.insuranceFund,
		}
		if err := tx.Save(header).Error; err != nil {
			return err
		}
		for _, vToken := range ch.markets.VTokens() {
			w := ch.markets[vToken]
			pool, ok := w.Pool().(*SimPool)
			if !ok {
				return fmt.Errorf("market %s: pool %T cannot be persisted", vToken, w.Pool())
			}
			record := &MarketRecord{VToken: vToken.String(), Wrapper: w, Pool: pool}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
				return err
			}
		}
		for id, acc := range ch.accounts {
			record := &AccountRecord{Id: id, Owner: acc.Owner.String(), Account: acc}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logrus.Warnf("failed save snapshot %s", err)
		return err
	}
	logrus.Infof("snapshot saved: %d markets, %d accounts", len(ch.markets), len(ch.accounts))
	return nil
}

// Load rebuilds a clearing house. oracleFor supplies the price source of each
// market; when it returns nil the market's initial price is used.
func (s *SnapshotStore) Load(clock Clock, metrics *Metrics, oracleFor func(cfg MarketConfig) Oracle) (*ClearingHouse, error) {
	var header ClearingHouseRecord
	if err := s.db.First(&header, 1).Error; err != nil {
		return nil, err
	}
	constants := Constants{
		VBase:             common.HexToAddress(header.VBase),
		MinRequiredMargin: header.MinRequiredMargin,
	}
	params := LiquidationParams{
		FixFee:                    header.FixFee,
		LiquidationFeeFractionBps: header.LiquidationFeeFractionBps,
		InsuranceFundFeeShareBps:  header.InsuranceFundFeeShareBps,
	}
	ch := NewClearingHouse(constants, params, metrics)
	ch.insuranceFund = header.InsuranceFund

	var markets []*MarketRecord
	if err := s.db.Find(&markets).Error; err != nil {
		return nil, err
	}
	for _, m := range markets {
		if m.Wrapper == nil || m.Pool == nil {
			return nil, fmt.Errorf("market %s: incomplete record", m.VToken)
		}
		var oracle Oracle
		if oracleFor != nil {
			oracle = oracleFor(m.Wrapper.Config)
		}
		if oracle == nil {
			oracle = &FixedOracle{PriceX128: m.Wrapper.Config.InitialPrice.Mul(Q128).Floor()}
		}
		m.Pool.SetClock(clock)
		m.Wrapper.attach(m.Pool, oracle, clock, metrics)
		ch.markets[m.Wrapper.VToken()] = m.Wrapper
	}

	var accounts []*AccountRecord
	if err := s.db.Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Account == nil {
			return nil, fmt.Errorf("account %s: incomplete record", a.Id)
		}
		ch.accounts[a.Id] = a.Account
	}
	logrus.Infof("snapshot loaded: %d markets, %d accounts", len(ch.markets), len(ch.accounts))
	return ch, nil
}

func scanJSON(value interface{}, dst interface{}, name string) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("failed to unmarshal %s value: %v", name, value)
	}
}

func valueJSON(src interface{}) (string, error) {
	bs, err := json.Marshal(src)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}
