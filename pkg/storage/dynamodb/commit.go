package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// Commit writes the unit of work with a single TransactWriteItems call.
// Every write carries a condition, so a stale wallet version, a status that
// already moved, or a reused key cancels the whole transaction.
func (s *Store) Commit(ctx context.Context, c *storage.Changes) error {
	if c.IsEmpty() {
		return nil
	}

	items, err := s.buildTransactItems(c)
	if err != nil {
		return err
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("commit cancelled: %w", storage.ErrConflict)
		}
		return fmt.Errorf("failed to execute commit transaction: %w", err)
	}

	if c.Wallet != nil {
		c.Wallet.Version++
	}
	return nil
}

func (s *Store) buildTransactItems(c *storage.Changes) ([]types.TransactWriteItem, error) {
	var items []types.TransactWriteItem

	if w := c.Wallet; w != nil {
		rec := toWalletRecord(w)
		rec.Version = w.Version + 1
		av, err := attributevalue.MarshalMap(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal wallet: %w", err)
		}
		put := &types.Put{TableName: aws.String(s.WalletsTableName), Item: av}
		if w.Version == 0 {
			// Prevent a second wallet for the same user.
			put.ConditionExpression = aws.String("attribute_not_exists(user_id)")
		} else {
			put.ConditionExpression = aws.String("version = :version")
			put.ExpressionAttributeValues = map[string]types.AttributeValue{
				":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(w.Version, 10)},
			}
		}
		items = append(items, types.TransactWriteItem{Put: put})
	}

	for _, a := range c.NewAccounts {
		userID := ""
		if c.Wallet != nil {
			userID = c.Wallet.UserId
		}
		av, err := attributevalue.MarshalMap(accountIndexRecord{AccountId: a.Id, WalletId: a.WalletId, UserId: userID})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal account: %w", err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.AccountsTableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(account_id)"),
		}})
	}

	for i := range c.NewTransactions {
		av, err := attributevalue.MarshalMap(toTransactionRecord(&c.NewTransactions[i]))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction: %w", err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.TransactionsTableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		}})
	}

	for _, u := range c.TransactionUpdates {
		atAV, err := attributevalue.Marshal(u.At.UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal timestamp for status update: %w", err)
		}
		update := "SET #status = :to_status, updated_at = :now"
		condition := "#status = :from_status"
		values := map[string]types.AttributeValue{
			":to_status":   &types.AttributeValueMemberS{Value: string(u.To)},
			":from_status": &types.AttributeValueMemberS{Value: string(u.From)},
			":now":         atAV,
		}
		if r := u.Refunded; r != nil {
			update += ", refunded_amount = :refunded_to"
			if r.From.IsZero() {
				// Rows written before refunds were tracked carry no refunded_amount.
				condition += " AND (attribute_not_exists(refunded_amount) OR refunded_amount = :refunded_from)"
			} else {
				condition += " AND refunded_amount = :refunded_from"
			}
			values[":refunded_from"] = &types.AttributeValueMemberS{Value: r.From.String()}
			values[":refunded_to"] = &types.AttributeValueMemberS{Value: r.To.String()}
		}
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName: aws.String(s.TransactionsTableName),
			Key: map[string]types.AttributeValue{
				"id": &types.AttributeValueMemberS{Value: u.TransactionID},
			},
			UpdateExpression:    aws.String(update),
			ConditionExpression: aws.String(condition),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: values,
		}})
	}

	if p := c.NewPayment; p != nil {
		av, err := attributevalue.MarshalMap(toPaymentRecord(p))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payment: %w", err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.PaymentsTableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(authority)"),
		}})
	}

	if u := c.PaymentUpdate; u != nil {
		av, err := attributevalue.MarshalMap(toPaymentRecord(u.Payment))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payment: %w", err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.PaymentsTableName),
			Item:                av,
			ConditionExpression: aws.String("#status = :from_status"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":from_status": &types.AttributeValueMemberS{Value: string(u.From)},
			},
		}})
	}

	for i := range c.Events {
		av, err := attributevalue.MarshalMap(toOutboxRecord(&c.Events[i]))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal outbox event: %w", err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.OutboxTableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		}})
	}

	return items, nil
}

// isConditionFailure reports whether a TransactWriteItems error means one of
// our conditions failed or the items were contended by another transaction.
func isConditionFailure(err error) bool {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			switch aws.ToString(reason.Code) {
			case "ConditionalCheckFailed", "TransactionConflict":
				return true
			}
		}
		return false
	}
	var condCheckFailed *types.ConditionalCheckFailedException
	return errors.As(err, &condCheckFailed)
}
